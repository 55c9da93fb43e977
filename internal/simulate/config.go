package simulate

import "time"

// Config holds configuration for a ladder simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumTeams   int           // Number of teams in the population
	NumMatches int           // Number of matches to simulate
	Bracket    string        // Bracket the matches are played in
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for simulated matches
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Team is a simulated competitor with a hidden skill the ladder is expected
// to recover.
type Team struct {
	ID    string  `json:"id"`
	Skill float64 `json:"skill"` // hidden Elo-scale strength
}

// Match is the wire shape submitted to POST /matches.
type Match struct {
	MatchID     string `json:"match_id"`
	Bracket     string `json:"bracket"`
	WinnerID    string `json:"winner_id"`
	LoserID     string `json:"loser_id"`
	WinnerScore int    `json:"winner_score"`
	LoserScore  int    `json:"loser_score"`
	CompletedAt string `json:"completed_at"`
}

// Entry mirrors a leaderboard row returned by the service.
type Entry struct {
	Rank       int     `json:"rank"`
	TeamID     string  `json:"team_id"`
	Rating     float64 `json:"rating"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Confidence float64 `json:"confidence"`
}

// AckResponse represents the response from match submission.
type AckResponse struct {
	Status string `json:"status"`
}

// Stats holds simulation statistics.
type Stats struct {
	TeamsGenerated     int
	MatchesGenerated   int
	MatchesSubmitted   int
	MatchesSuccessful  int
	MatchesFailed      int
	LeaderboardEntries int
	RankCorrelation    float64
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
