package rating

import "math"

// ExpectedScore returns the Elo win probability for a team rated ratingA
// against an opponent rated ratingB. ExpectedScore(a, b) + ExpectedScore(b, a)
// always sums to 1.
func (c *Calculator) ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/c.cfg.EloDivisor))
}

// BaseChange returns the unmodified rating delta K*(actual-expected) for a
// side that scored expected win probability and either won or lost.
func (c *Calculator) BaseChange(expected float64, won bool) float64 {
	actual := 0.0
	if won {
		actual = 1.0
	}
	return c.cfg.KFactor * (actual - expected)
}
