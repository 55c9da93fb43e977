package rating

import "math"

// gapCosineTaper keeps the cosine from reaching its trough inside the
// window so the factor decays smoothly instead of touching zero early.
const gapCosineTaper = 0.7

// GapScaling returns the multiplicative factor applied to the higher-rated
// side's rating change when it beats a much lower-rated opponent. Farming
// fully-confident low-rated teams ("shadow-boxing") yields nothing once the
// gap exceeds MaxGapPercent of the population rating range.
//
// Scaling only engages when the lower-rated side is fully confident; a
// provisional opponent's rating says little about the real gap.
func (c *Calculator) GapScaling(higherRating, lowerRating, ratingRange, lowerConfidence float64) float64 {
	if lowerConfidence < c.cfg.MaxConfidence {
		return 1.0
	}
	maxGap := ratingRange * c.cfg.MaxGapPercent
	if maxGap <= 0 {
		return 1.0
	}
	gap := higherRating - lowerRating
	if gap <= 0 {
		return 1.0
	}
	if gap > maxGap {
		return 0.0
	}
	normalized := gap / maxGap
	return (1.0 + math.Cos(math.Pi*normalized*gapCosineTaper)) / 2.0
}
