// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Bracket is a team-size format bucket with an independent rating space.
type Bracket string

// Supported brackets.
const (
	BracketSolo Bracket = "1v1"
	BracketDuo  Bracket = "2v2"
	BracketTrio Bracket = "3v3"
	BracketQuad Bracket = "4v4"
)

// ParseBracket validates a bracket string from the wire.
func ParseBracket(s string) (Bracket, error) {
	switch b := Bracket(strings.ToLower(strings.TrimSpace(s))); b {
	case BracketSolo, BracketDuo, BracketTrio, BracketQuad:
		return b, nil
	default:
		return "", fmt.Errorf("unknown bracket %q", s)
	}
}

// MatchResult represents a completed best-of-N match submitted by clients.
type MatchResult struct {
	MatchID     string    // unique id for idempotency
	Bracket     Bracket   // rating space the match was played in
	WinnerID    string    // winning team identifier
	LoserID     string    // losing team identifier
	WinnerScore int       // games won by the winner
	LoserScore  int       // games won by the loser
	CompletedAt time.Time // completion timestamp
}

// TeamBracketStats captures a team's rating state within one bracket.
type TeamBracketStats struct {
	TeamID             string
	Bracket            Bracket
	CurrentRating      float64
	InitialRating      float64
	HighestRating      float64
	Wins               int
	Losses             int
	Confidence         float64 // derived from games played, cached on write
	RecentRatingChange float64
	LastUpdated        time.Time
}

// GamesPlayed returns the completed-match count backing confidence.
func (s *TeamBracketStats) GamesPlayed() int {
	return s.Wins + s.Losses
}

// VarietyStats holds a team's opponent-diversity measures for one bracket.
// Maintained outside the rating calculator; a nil value means the team has
// no encounter history yet.
type VarietyStats struct {
	TeamID         string
	Bracket        Bracket
	VarietyEntropy float64
	VarietyBonus   float64 // pre-clamped to the configured bonus bounds
	UpdatedAt      time.Time
}
