// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// MetricsMiddleware instruments a handler with request metrics and access
// logging under the given endpoint label.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	log := logger.Named("http")

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(sw.status)

		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsed)

		if sw.status >= http.StatusBadRequest {
			kind, severity := classifyStatus(sw.status)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
			metrics.RecordErrorByType(kind, severity)
			metrics.RecordErrorLatency("http", kind, elapsed)

			log.Debug(r.Context(), "request failed",
				logger.String("endpoint", endpoint),
				logger.String("method", r.Method),
				logger.Int("status", sw.status),
				logger.Int("bytes", sw.bytes),
			)
		}
	}
}

// classifyStatus maps a failing status code to the error-metric labels.
func classifyStatus(status int) (kind, severity string) {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusTooManyRequests:
		return "rate_limit", "medium"
	case status == http.StatusNotFound:
		return "not_found", "medium"
	default:
		return "client_error", "medium"
	}
}

// statusWriter captures the status code and body size written downstream.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += n
	return n, err //nolint:wrapcheck // transparent passthrough
}
