// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/ladder/internal/domain/model"
)

// TeamDependencies defines the interface for team stat lookups.
type TeamDependencies interface {
	Team(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error)
	Variety(ctx context.Context, teamID string, bracket model.Bracket) (*model.VarietyStats, error)
	OpenPotentialCount(ctx context.Context, teamID string, bracket model.Bracket) (int, error)
}

// TeamHandler handles team stat requests.
type TeamHandler struct {
	deps TeamDependencies
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(deps TeamDependencies) *TeamHandler {
	return &TeamHandler{deps: deps}
}

// teamResponse is the read shape for GET /team/{id}.
type teamResponse struct {
	TeamID             string    `json:"team_id"`
	Bracket            string    `json:"bracket"`
	CurrentRating      float64   `json:"current_rating"`
	InitialRating      float64   `json:"initial_rating"`
	HighestRating      float64   `json:"highest_rating"`
	Wins               int       `json:"wins"`
	Losses             int       `json:"losses"`
	Confidence         float64   `json:"confidence"`
	RecentRatingChange float64   `json:"recent_rating_change"`
	OpenPotentialCount int       `json:"open_proven_potential_count"`
	VarietyEntropy     *float64  `json:"variety_entropy,omitempty"`
	VarietyBonus       *float64  `json:"variety_bonus,omitempty"`
	LastUpdated        time.Time `json:"last_updated"`
}

// HandleGetTeam handles GET /team/{team_id}?bracket=B requests.
func (h *TeamHandler) HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_team"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /team/
	teamID := strings.TrimPrefix(r.URL.Path, "/team/")
	if teamID == "" || strings.Contains(teamID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	bracket, err := model.ParseBracket(r.URL.Query().Get("bracket"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	stats, err := h.deps.Team(r.Context(), teamID, bracket)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := teamResponse{
		TeamID:             stats.TeamID,
		Bracket:            string(stats.Bracket),
		CurrentRating:      stats.CurrentRating,
		InitialRating:      stats.InitialRating,
		HighestRating:      stats.HighestRating,
		Wins:               stats.Wins,
		Losses:             stats.Losses,
		Confidence:         stats.Confidence,
		RecentRatingChange: stats.RecentRatingChange,
		LastUpdated:        stats.LastUpdated,
	}
	// Variety and the open-record count are best-effort enrichment; a
	// lookup failure only omits or zeroes the fields.
	if variety, err := h.deps.Variety(r.Context(), teamID, bracket); err == nil && variety != nil {
		resp.VarietyEntropy = &variety.VarietyEntropy
		resp.VarietyBonus = &variety.VarietyBonus
	}
	if count, err := h.deps.OpenPotentialCount(r.Context(), teamID, bracket); err == nil {
		resp.OpenPotentialCount = count
	}
	writeJSON(w, http.StatusOK, resp)
}
