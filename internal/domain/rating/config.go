// Package rating implements the Elo-derived rating engine: expected score,
// confidence scaling, variety bonuses, gap scaling, catch-up bonuses, and
// the composed per-match rating change calculation.
package rating

// Config holds the tunable constants of the rating system. A zero Config is
// not usable; start from DefaultConfig and override through the service
// configuration.
type Config struct {
	// Base Elo parameters.
	StartingRating float64
	MinimumRating  float64
	KFactor        float64
	EloDivisor     float64

	// Confidence growth.
	ConfidenceGames      int
	MaxConfidence        float64
	ConfidenceGrowthRate float64

	// Variety bonus bounds and activity scaling floor.
	MaxVarietyBonus   float64
	MinVarietyBonus   float64
	MinVarietyScaling float64

	// Gap scaling window as a fraction of the population rating range.
	MaxGapPercent float64

	// Cap on the combined confidence+variety multiplier.
	MaxMultiplier float64

	// Catch-up bonus for winners far below the convergence target.
	CatchUpTargetRating float64
	CatchUpThreshold    float64
	CatchUpMaxBonus     float64
}

// Default constant values. These mirror the live ladder tuning and tests
// depend on them; change through configuration, not here.
const (
	defaultStartingRating       = 1000.0
	defaultMinimumRating        = 600.0
	defaultKFactor              = 40.0
	defaultEloDivisor           = 400.0
	defaultConfidenceGames      = 20
	defaultMaxConfidence        = 1.0
	defaultConfidenceGrowthRate = 3.0
	defaultMaxVarietyBonus      = 0.2
	defaultMinVarietyBonus      = -0.1
	defaultMinVarietyScaling    = 0.5
	defaultMaxGapPercent        = 0.2
	defaultMaxMultiplier        = 2.0
	defaultCatchUpTargetRating  = 1500.0
	defaultCatchUpThreshold     = 200.0
	defaultCatchUpMaxBonus      = 1.0
)

// DefaultConfig returns the standard ladder tuning.
func DefaultConfig() Config {
	return Config{
		StartingRating:       defaultStartingRating,
		MinimumRating:        defaultMinimumRating,
		KFactor:              defaultKFactor,
		EloDivisor:           defaultEloDivisor,
		ConfidenceGames:      defaultConfidenceGames,
		MaxConfidence:        defaultMaxConfidence,
		ConfidenceGrowthRate: defaultConfidenceGrowthRate,
		MaxVarietyBonus:      defaultMaxVarietyBonus,
		MinVarietyBonus:      defaultMinVarietyBonus,
		MinVarietyScaling:    defaultMinVarietyScaling,
		MaxGapPercent:        defaultMaxGapPercent,
		MaxMultiplier:        defaultMaxMultiplier,
		CatchUpTargetRating:  defaultCatchUpTargetRating,
		CatchUpThreshold:     defaultCatchUpThreshold,
		CatchUpMaxBonus:      defaultCatchUpMaxBonus,
	}
}
