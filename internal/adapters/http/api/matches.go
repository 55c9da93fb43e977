// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/model"
)

// MatchDependencies defines the interface for match submission dependencies.
type MatchDependencies interface {
	SubmitResult(ctx context.Context, m model.MatchResult) error
}

// MatchesHandler handles match result submissions.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// HandlePostMatch handles POST /matches requests.
func (h *MatchesHandler) HandlePostMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_match"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	err := h.deps.SubmitResult(r.Context(), req.toModel())
	switch {
	case err == nil:
		// Duplicates are accepted and dropped; both paths ack.
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case errors.Is(err, service.ErrInvalidMatch):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
