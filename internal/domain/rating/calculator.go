package rating

import (
	"fmt"
	"math"

	"github.com/okian/ladder/internal/domain/model"
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithConfig replaces the default rating configuration.
func WithConfig(cfg Config) Option {
	return func(c *Calculator) {
		c.cfg = cfg
	}
}

// Calculator composes the rating modifiers into final symmetric deltas for a
// winner/loser pair. It holds no mutable state and is safe for concurrent
// use.
type Calculator struct {
	cfg Config
}

// New creates a Calculator with the default tuning.
func New(opts ...Option) *Calculator {
	c := &Calculator{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the calculator's tuning.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Side carries one team's inputs to a rating calculation.
type Side struct {
	TeamID     string
	Rating     float64
	Confidence float64
	Variety    *model.VarietyStats // nil when the team has no encounter history
}

// ChangeResult carries the final deltas and every intermediate value, so
// callers can persist, explain, and seed proven-potential records from a
// single computation.
type ChangeResult struct {
	WinnerChange float64
	LoserChange  float64

	ExpectedScore float64 // winner's perspective
	BaseChange    float64

	WinnerMultiplier   float64
	LoserMultiplier    float64
	WinnerVarietyBonus float64
	LoserVarietyBonus  float64
	WinnerCatchUpBonus float64

	GapScaling        float64
	HigherRatedTeamID string
}

// CalculateRatingChange computes the rating deltas for a completed match.
// ratingRange is the population max-min rating in the match's bracket.
//
// Inputs are assumed pre-resolved by the caller (unknown teams defaulted to
// the starting rating); the calculator still rejects non-finite or negative
// values rather than propagate corruption.
func (c *Calculator) CalculateRatingChange(winner, loser Side, ratingRange float64) (ChangeResult, error) {
	if err := validateSide("winner", winner); err != nil {
		return ChangeResult{}, err
	}
	if err := validateSide("loser", loser); err != nil {
		return ChangeResult{}, err
	}
	if math.IsNaN(ratingRange) || math.IsInf(ratingRange, 0) || ratingRange < 0 {
		return ChangeResult{}, fmt.Errorf("%w: rating range %v", ErrInvalidRating, ratingRange)
	}

	expected := c.ExpectedScore(winner.Rating, loser.Rating)
	baseChange := c.BaseChange(expected, true)

	winnerConfMult := c.ConfidenceMultiplier(winner.Confidence)
	loserConfMult := c.ConfidenceMultiplier(loser.Confidence)

	winnerVariety := c.VarietyBonus(winner.Variety, winner.Confidence)
	loserVariety := c.VarietyBonus(loser.Variety, loser.Confidence)

	// Gap scaling is computed from the higher-rated side, gated on the
	// lower-rated side's confidence.
	winnerIsHigher := winner.Rating > loser.Rating
	higherID := loser.TeamID
	var gapScaling float64
	if winnerIsHigher {
		higherID = winner.TeamID
		gapScaling = c.GapScaling(winner.Rating, loser.Rating, ratingRange, loser.Confidence)
	} else {
		gapScaling = c.GapScaling(loser.Rating, winner.Rating, ratingRange, winner.Confidence)
	}

	// Winners bank positive variety as extra gain; losers spend it as
	// reduced loss.
	winnerMult := math.Min(c.cfg.MaxMultiplier, winnerConfMult+winnerVariety)
	loserMult := math.Min(c.cfg.MaxMultiplier, loserConfMult-loserVariety)

	catchUp := c.CatchUpBonus(winner.Rating)

	var winnerChange, loserChange float64
	if winnerIsHigher {
		winnerChange = baseChange * (winnerMult + catchUp) * gapScaling
		loserChange = -baseChange * loserMult
	} else {
		winnerChange = baseChange * (winnerMult + catchUp)
		loserChange = -baseChange * loserMult * gapScaling
	}

	return ChangeResult{
		WinnerChange:       winnerChange,
		LoserChange:        loserChange,
		ExpectedScore:      expected,
		BaseChange:         baseChange,
		WinnerMultiplier:   winnerMult,
		LoserMultiplier:    loserMult,
		WinnerVarietyBonus: winnerVariety,
		LoserVarietyBonus:  loserVariety,
		WinnerCatchUpBonus: catchUp,
		GapScaling:         gapScaling,
		HigherRatedTeamID:  higherID,
	}, nil
}

// ApplyChange folds a delta into a current rating, enforcing the floor.
func (c *Calculator) ApplyChange(current, delta float64) float64 {
	return math.Max(c.cfg.MinimumRating, current+delta)
}

func validateSide(label string, s Side) error {
	if s.TeamID == "" {
		return fmt.Errorf("%w: %s team id is empty", ErrInvalidRating, label)
	}
	if math.IsNaN(s.Rating) || math.IsInf(s.Rating, 0) || s.Rating < 0 {
		return fmt.Errorf("%w: %s rating %v", ErrInvalidRating, label, s.Rating)
	}
	if math.IsNaN(s.Confidence) || s.Confidence < 0 {
		return fmt.Errorf("%w: %s confidence %v", ErrInvalidRating, label, s.Confidence)
	}
	return nil
}
