// Package repository defines the ladder persistence interface and its
// in-memory and Postgres implementations.
package repository

import (
	"context"

	"github.com/okian/ladder/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank       int     `json:"rank"`
	TeamID     string  `json:"team_id"`
	Rating     float64 `json:"rating"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Confidence float64 `json:"confidence"`
}

// BracketAverages carries population-level inputs for variety scoring.
type BracketAverages struct {
	AverageEntropy float64
	AverageGames   float64
}

// Store provides read/write access to team stats, variety stats, opponent
// encounters, and proven-potential records, all scoped per bracket.
//
// Implementations must make each method atomic, but callers own the
// serialization of fetch-compute-write sequences across methods (a per-team
// lock around rating updates).
type Store interface {
	// EnsureTeam resolves a team's stats, creating them at the starting
	// rating on first contact.
	EnsureTeam(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error)

	// TeamBracketStats resolves existing stats. Returns ErrNotFound for
	// unknown teams.
	TeamBracketStats(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error)

	// SaveTeamBracketStats overwrites a team's stats.
	SaveTeamBracketStats(ctx context.Context, stats model.TeamBracketStats) error

	// AdjustTeamRating applies a signed delta to a team's current rating,
	// clamped to the configured floor, in a single atomic step.
	AdjustTeamRating(ctx context.Context, teamID string, bracket model.Bracket, delta float64) error

	// VarietyStats returns a team's variety stats, or nil when the team
	// has no encounter history yet.
	VarietyStats(ctx context.Context, teamID string, bracket model.Bracket) (*model.VarietyStats, error)

	// SaveVarietyStats overwrites a team's variety stats.
	SaveVarietyStats(ctx context.Context, stats model.VarietyStats) error

	// RecordEncounter increments the match count against an opponent.
	RecordEncounter(ctx context.Context, teamID, opponentID string, bracket model.Bracket) error

	// OpponentEncounters returns a team's per-opponent match counts.
	OpponentEncounters(ctx context.Context, teamID string, bracket model.Bracket) (map[string]int, error)

	// PopulationRatings lists every current rating in a bracket, for
	// range and percentile computation.
	PopulationRatings(ctx context.Context, bracket model.Bracket) ([]float64, error)

	// Averages returns population average entropy and games played for a
	// bracket. Zero values when the bracket is empty.
	Averages(ctx context.Context, bracket model.Bracket) (BracketAverages, error)

	// OpenProvenPotentialRecords lists incomplete records whose new team
	// is teamID in the given bracket.
	OpenProvenPotentialRecords(ctx context.Context, teamID string, bracket model.Bracket) ([]*model.ProvenPotentialRecord, error)

	// SaveProvenPotentialRecord persists a new or mutated record.
	SaveProvenPotentialRecord(ctx context.Context, rec *model.ProvenPotentialRecord) error

	// Leaderboard returns the top-n entries for a bracket, rating desc.
	Leaderboard(ctx context.Context, bracket model.Bracket, n int) ([]Entry, error)

	// Count returns the number of teams tracked in a bracket.
	Count(ctx context.Context, bracket model.Bracket) int
}
