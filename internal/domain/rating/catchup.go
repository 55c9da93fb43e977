package rating

import "math"

// CatchUpBonus returns the additive multiplier bonus for a winner whose
// rating sits well below the convergence target. Zero at or near the target,
// approaching CatchUpMaxBonus exponentially with distance.
//
// Only winners receive it; a losing team below target gets no cushion. That
// asymmetry is deliberate and matches the ladder's tuning history.
func (c *Calculator) CatchUpBonus(teamRating float64) float64 {
	if teamRating >= c.cfg.CatchUpTargetRating {
		return 0.0
	}
	distance := c.cfg.CatchUpTargetRating - teamRating
	if distance <= c.cfg.CatchUpThreshold {
		return 0.0
	}
	scale := c.cfg.CatchUpThreshold / 2.0
	progress := 1.0 - math.Exp(-distance/scale)
	return progress * c.cfg.CatchUpMaxBonus
}
