// Package metrics provides Prometheus metrics for the ladder rating service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the ladder service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Match Pipeline Metrics - Core throughput of the rating engine
	matchesProcessed       *prometheus.CounterVec
	matchesDuplicate       prometheus.Counter
	matchProcessingLatency prometheus.Histogram

	// Rating Metrics - Distribution of what the engine produces
	ratingChangeMagnitude prometheus.Histogram
	catchUpBonusApplied   prometheus.Counter
	gapScalingApplied     prometheus.Counter

	// Proven Potential Metrics
	provenPotentialOpened      prometheus.Counter
	provenPotentialCompleted   prometheus.Counter
	provenPotentialAdjustments prometheus.Histogram

	// Operational Health Metrics
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge
	totalTeams  prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics - Shard and latency tracking
	repositoryShardCount    prometheus.Gauge
	teamsRegistered         prometheus.Counter
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue Metrics
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ladder",
		subsystem:        "rating",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Match Pipeline Metrics
	m.matchesProcessed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "matches_processed_total",
			Help:      "Total number of matches processed by bracket and outcome status",
		},
		[]string{"bracket", "status"},
	)

	m.matchesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_duplicate_total",
		Help:      "Total number of duplicate match submissions detected",
	})

	m.matchProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_processing_latency_seconds",
		Help:      "Histogram of full rating pipeline latency per match in seconds",
		Buckets:   m.histogramBuckets,
	})

	// Rating Metrics
	m.ratingChangeMagnitude = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_change_magnitude",
		Help:      "Distribution of absolute rating changes applied to winners",
		Buckets:   []float64{1, 5, 10, 20, 40, 60, 80, 100, 150, 200},
	})

	m.catchUpBonusApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catch_up_bonus_applied_total",
		Help:      "Total number of matches where a catch-up bonus was granted",
	})

	m.gapScalingApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gap_scaling_applied_total",
		Help:      "Total number of matches where gap scaling reduced a change",
	})

	// Proven Potential Metrics
	m.provenPotentialOpened = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "proven_potential_opened_total",
		Help:      "Total number of proven potential records opened",
	})

	m.provenPotentialCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "proven_potential_completed_total",
		Help:      "Total number of proven potential records completed",
	})

	m.provenPotentialAdjustments = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "proven_potential_adjustment_magnitude",
		Help:      "Distribution of absolute retroactive rating adjustments",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	// Operational Health Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the match queue (backlog indicator)",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of active workers (processing capacity)",
	})

	m.totalTeams = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "total_teams",
		Help:      "Total number of teams tracked across brackets",
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Repository Metrics
	m.repositoryShardCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_shard_count",
		Help:      "Total number of repository shards",
	})

	m.teamsRegistered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "teams_registered_total",
		Help:      "Total number of team-bracket registrations",
	})

	m.repositoryUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_update_latency_milliseconds",
		Help:      "Repository update operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.repositoryQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_query_latency_milliseconds",
		Help:      "Repository query operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Queue Metrics
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queue capacity",
	})

	m.queueEnqueueErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_enqueue_errors_total",
			Help:      "Total number of enqueue failures by reason",
		},
		[]string{"reason"},
	)

	// Enhanced Error Metrics
	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)
}

// Match Pipeline Metrics Functions.

// RecordMatchProcessed increments the processed matches counter.
func RecordMatchProcessed(bracket, status string) {
	globalManager.matchesProcessed.WithLabelValues(bracket, status).Inc()
}

// RecordMatchDuplicate increments the duplicate match counter.
func RecordMatchDuplicate() {
	globalManager.matchesDuplicate.Inc()
}

// RecordMatchProcessingLatency records pipeline latency in seconds.
func RecordMatchProcessingLatency(seconds float64) {
	globalManager.matchProcessingLatency.Observe(seconds)
}

// Rating Metrics Functions.

// RecordRatingChange records the absolute winner rating change.
func RecordRatingChange(magnitude float64) {
	globalManager.ratingChangeMagnitude.Observe(magnitude)
}

// RecordCatchUpBonusApplied increments the catch-up bonus counter.
func RecordCatchUpBonusApplied() {
	globalManager.catchUpBonusApplied.Inc()
}

// RecordGapScalingApplied increments the gap scaling counter.
func RecordGapScalingApplied() {
	globalManager.gapScalingApplied.Inc()
}

// Proven Potential Metrics Functions.

// RecordProvenPotentialOpened increments the opened records counter.
func RecordProvenPotentialOpened() {
	globalManager.provenPotentialOpened.Inc()
}

// RecordProvenPotentialCompleted increments the completed records counter.
func RecordProvenPotentialCompleted() {
	globalManager.provenPotentialCompleted.Inc()
}

// RecordProvenPotentialAdjustment records an applied retroactive adjustment.
func RecordProvenPotentialAdjustment(magnitude float64) {
	globalManager.provenPotentialAdjustments.Observe(magnitude)
}

// Operational Health Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateTotalTeams sets the total teams count.
func UpdateTotalTeams(count int) {
	globalManager.totalTeams.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// UpdateRepositoryShardCount sets the total number of repository shards.
func UpdateRepositoryShardCount(count int) {
	globalManager.repositoryShardCount.Set(float64(count))
}

// RecordTeamRegistered increments the team registration counter.
func RecordTeamRegistered() {
	globalManager.teamsRegistered.Inc()
}

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError increments the enqueue error counter for a reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Enhanced Error Metrics Functions.

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
