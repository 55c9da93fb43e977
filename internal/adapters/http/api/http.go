// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SubmitResult validates, deduplicates, and enqueues a completed
	// match for asynchronous rating.
	SubmitResult(ctx context.Context, m model.MatchResult) error

	// Read operations expose ladder data.
	Leaderboard(ctx context.Context, bracket model.Bracket, n int) ([]Entry, error)
	Team(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error)
	Variety(ctx context.Context, teamID string, bracket model.Bracket) (*model.VarietyStats, error)
	OpenPotentialCount(ctx context.Context, teamID string, bracket model.Bracket) (int, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = repository.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	matchesHandler     *MatchesHandler
	leaderboardHandler *LeaderboardHandler
	teamHandler        *TeamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		matchesHandler:     NewMatchesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		teamHandler:        NewTeamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandlePostMatch, "matches"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/team/", MetricsMiddleware(s.teamHandler.HandleGetTeam, "team"))
}

// matchRequest mirrors the OpenAPI schema for POST /matches.
type matchRequest struct {
	MatchID     string `json:"match_id"`
	Bracket     string `json:"bracket"`
	WinnerID    string `json:"winner_id"`
	LoserID     string `json:"loser_id"`
	WinnerScore int    `json:"winner_score"`
	LoserScore  int    `json:"loser_score"`
	CompletedAt string `json:"completed_at"`
}

func (m matchRequest) validate() error {
	switch {
	case strings.TrimSpace(m.MatchID) == "":
		return errors.New("missing match_id")
	case strings.TrimSpace(m.WinnerID) == "":
		return errors.New("missing winner_id")
	case strings.TrimSpace(m.LoserID) == "":
		return errors.New("missing loser_id")
	case strings.TrimSpace(m.Bracket) == "":
		return errors.New("missing bracket")
	}
	if _, err := model.ParseBracket(m.Bracket); err != nil {
		return err
	}
	if m.CompletedAt != "" {
		if _, err := time.Parse(time.RFC3339, m.CompletedAt); err != nil {
			return errors.New("invalid completed_at; must be RFC3339")
		}
	}
	return nil
}

// toModel converts a validated request to the domain type.
func (m matchRequest) toModel() model.MatchResult {
	bracket, _ := model.ParseBracket(m.Bracket)
	completed := time.Now().UTC()
	if m.CompletedAt != "" {
		if ts, err := time.Parse(time.RFC3339, m.CompletedAt); err == nil {
			completed = ts.UTC()
		}
	}
	return model.MatchResult{
		MatchID:     strings.TrimSpace(m.MatchID),
		Bracket:     bracket,
		WinnerID:    strings.TrimSpace(m.WinnerID),
		LoserID:     strings.TrimSpace(m.LoserID),
		WinnerScore: m.WinnerScore,
		LoserScore:  m.LoserScore,
		CompletedAt: completed,
	}
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
