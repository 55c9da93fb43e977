package rating

import "math"

// Confidence maps a games-played count to [0, MaxConfidence]. Growth is
// exponential with quick early gains that level off, reaching the maximum
// exactly at ConfidenceGames and staying there.
func (c *Calculator) Confidence(gamesPlayed int) float64 {
	if gamesPlayed <= 0 {
		return 0
	}
	if gamesPlayed >= c.cfg.ConfidenceGames {
		return c.cfg.MaxConfidence
	}
	progress := float64(gamesPlayed) / float64(c.cfg.ConfidenceGames)
	return c.cfg.MaxConfidence * (1.0 - math.Exp(-c.cfg.ConfidenceGrowthRate*progress))
}

// ConfidenceMultiplier converts confidence into a volatility multiplier in
// [1, 2]: brand-new teams move at double speed, settled teams at normal.
func (c *Calculator) ConfidenceMultiplier(confidence float64) float64 {
	return 2.0 - confidence
}
