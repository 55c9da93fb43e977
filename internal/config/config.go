// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment sources on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"

	"github.com/okian/ladder/internal/domain/potential"
	"github.com/okian/ladder/internal/domain/rating"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory match queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of match-processing workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the match-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the in-memory store.
	ShardCount int `koanf:"shard_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Storage selects the persistence backend: memory or postgres.
	Storage string `koanf:"storage"`

	// DatabaseDSN is the Postgres connection string when Storage=postgres.
	DatabaseDSN string `koanf:"database_dsn"`

	// Rating holds the rating engine tuning.
	Rating RatingConfig `koanf:"rating"`

	// Potential holds the proven-potential tracker tuning.
	Potential PotentialConfig `koanf:"potential"`
}

// RatingConfig mirrors rating.Config with koanf tags so the tuning can be
// overridden from file or environment.
type RatingConfig struct {
	StartingRating       float64 `koanf:"starting_rating"`
	MinimumRating        float64 `koanf:"minimum_rating"`
	KFactor              float64 `koanf:"k_factor"`
	EloDivisor           float64 `koanf:"elo_divisor"`
	ConfidenceGames      int     `koanf:"confidence_games"`
	MaxConfidence        float64 `koanf:"max_confidence"`
	ConfidenceGrowthRate float64 `koanf:"confidence_growth_rate"`
	MaxVarietyBonus      float64 `koanf:"max_variety_bonus"`
	MinVarietyBonus      float64 `koanf:"min_variety_bonus"`
	MinVarietyScaling    float64 `koanf:"min_variety_scaling"`
	MaxGapPercent        float64 `koanf:"max_gap_percent"`
	MaxMultiplier        float64 `koanf:"max_multiplier"`
	CatchUpTargetRating  float64 `koanf:"catch_up_target_rating"`
	CatchUpThreshold     float64 `koanf:"catch_up_threshold"`
	CatchUpMaxBonus      float64 `koanf:"catch_up_max_bonus"`
}

// PotentialConfig mirrors potential.Config with koanf tags.
type PotentialConfig struct {
	TrackingMatches int     `koanf:"tracking_matches"`
	StepFraction    float64 `koanf:"step_fraction"`
	GapNormalizer   float64 `koanf:"gap_normalizer"`
	MaxConfidence   float64 `koanf:"max_confidence"`
	PayoutFactor    float64 `koanf:"payout_factor"`
}

// New creates a Config with defaults.
func New() *Config {
	r := rating.DefaultConfig()
	p := potential.DefaultConfig()
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           100_000,
		WorkerCount:         runtime.NumCPU() * 4,
		DedupeSize:          500_000,
		ShardCount:          8,
		MaxLeaderboardLimit: 100,
		Storage:             "memory",
		Rating: RatingConfig{
			StartingRating:       r.StartingRating,
			MinimumRating:        r.MinimumRating,
			KFactor:              r.KFactor,
			EloDivisor:           r.EloDivisor,
			ConfidenceGames:      r.ConfidenceGames,
			MaxConfidence:        r.MaxConfidence,
			ConfidenceGrowthRate: r.ConfidenceGrowthRate,
			MaxVarietyBonus:      r.MaxVarietyBonus,
			MinVarietyBonus:      r.MinVarietyBonus,
			MinVarietyScaling:    r.MinVarietyScaling,
			MaxGapPercent:        r.MaxGapPercent,
			MaxMultiplier:        r.MaxMultiplier,
			CatchUpTargetRating:  r.CatchUpTargetRating,
			CatchUpThreshold:     r.CatchUpThreshold,
			CatchUpMaxBonus:      r.CatchUpMaxBonus,
		},
		Potential: PotentialConfig{
			TrackingMatches: p.TrackingMatches,
			StepFraction:    p.StepFraction,
			GapNormalizer:   p.GapNormalizer,
			MaxConfidence:   p.MaxConfidence,
			PayoutFactor:    p.PayoutFactor,
		},
	}
}

// RatingConfig converts the koanf-tagged tuning into the engine's Config.
func (c *Config) RatingEngineConfig() rating.Config {
	return rating.Config{
		StartingRating:       c.Rating.StartingRating,
		MinimumRating:        c.Rating.MinimumRating,
		KFactor:              c.Rating.KFactor,
		EloDivisor:           c.Rating.EloDivisor,
		ConfidenceGames:      c.Rating.ConfidenceGames,
		MaxConfidence:        c.Rating.MaxConfidence,
		ConfidenceGrowthRate: c.Rating.ConfidenceGrowthRate,
		MaxVarietyBonus:      c.Rating.MaxVarietyBonus,
		MinVarietyBonus:      c.Rating.MinVarietyBonus,
		MinVarietyScaling:    c.Rating.MinVarietyScaling,
		MaxGapPercent:        c.Rating.MaxGapPercent,
		MaxMultiplier:        c.Rating.MaxMultiplier,
		CatchUpTargetRating:  c.Rating.CatchUpTargetRating,
		CatchUpThreshold:     c.Rating.CatchUpThreshold,
		CatchUpMaxBonus:      c.Rating.CatchUpMaxBonus,
	}
}

// TrackerConfig converts the koanf-tagged tuning into the tracker's Config.
func (c *Config) TrackerConfig() potential.Config {
	return potential.Config{
		TrackingMatches: c.Potential.TrackingMatches,
		StepFraction:    c.Potential.StepFraction,
		GapNormalizer:   c.Potential.GapNormalizer,
		MaxConfidence:   c.Potential.MaxConfidence,
		PayoutFactor:    c.Potential.PayoutFactor,
	}
}
