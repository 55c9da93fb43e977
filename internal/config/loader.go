package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LADDER_CONFIG is set
//  3. env (prefix LADDER_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("LADDER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: LADDER_ADDR, LADDER_QUEUE_SIZE, ...
	// Single underscores are preserved to match the koanf tags; a double
	// underscore descends into a section: LADDER_RATING__K_FACTOR ->
	// rating.k_factor.
	envProvider := env.Provider("LADDER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "ladder_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the service cannot run with.
func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.Storage {
	case "memory":
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database_dsn required for postgres storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage)
	}
	if c.Rating.KFactor <= 0 || c.Rating.EloDivisor <= 0 {
		return fmt.Errorf("%w: k_factor and elo_divisor must be positive", ErrInvalidConfig)
	}
	if c.Rating.MinimumRating > c.Rating.StartingRating {
		return fmt.Errorf("%w: minimum_rating exceeds starting_rating", ErrInvalidConfig)
	}
	if c.Potential.TrackingMatches <= 0 {
		return fmt.Errorf("%w: tracking_matches must be positive", ErrInvalidConfig)
	}
	return nil
}
