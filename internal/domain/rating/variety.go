package rating

import (
	"math"

	"github.com/okian/ladder/internal/domain/model"
)

// Tail scaling of the variety bonus for teams at the extremes of the rating
// distribution, who structurally cannot find varied opposition.
// TODO: normalize by the number of teams in each rating band instead of a
// fixed decile threshold.
const (
	tailDistanceThreshold = 0.8 // distance from the median, 0.8 = outer deciles
	sigmoidGrowthRate     = 1.1
	sigmoidMidpoint       = 8.0
	tailCurveMin          = 0.1
	tailCurveMax          = 1.0
)

// VarietyBonus resolves the bonus applied to a team's rating multiplier from
// its externally maintained variety stats. Teams still building confidence
// get nothing: their matchups are assigned, not chosen. A team with no
// encounter history at all is given the full bonus rather than a penalty.
func (c *Calculator) VarietyBonus(stats *model.VarietyStats, confidence float64) float64 {
	if confidence < c.cfg.MaxConfidence {
		return 0.0
	}
	if stats == nil {
		return c.cfg.MaxVarietyBonus
	}
	return clamp(stats.VarietyBonus, c.cfg.MinVarietyBonus, c.cfg.MaxVarietyBonus)
}

// VarietyInput carries the population-relative measures needed to compute a
// team's variety bonus from scratch.
type VarietyInput struct {
	TeamEntropy    float64
	AverageEntropy float64
	GamesPlayed    int
	AverageGames   float64
	// Percentile of the team's rating in the live distribution, 0-100.
	// Negative means unknown; tail scaling is skipped.
	Percentile float64
}

// ComputeVarietyBonus derives the clamped variety bonus for one team.
//
// The relative entropy difference is scaled by a quadratic ramp on match
// activity (floor MinVarietyScaling, full weight at the population average
// game count), then amplified for teams in the outer rating deciles: positive
// bonuses are pulled up and penalties toward zero by the same relative
// amount.
func (c *Calculator) ComputeVarietyBonus(in VarietyInput) float64 {
	relativeDiff := 0.0
	if avg := math.Abs(in.AverageEntropy); avg != 0 {
		relativeDiff = (in.TeamEntropy - in.AverageEntropy) / avg
	}

	gamesRatio := 1.0
	if in.AverageGames > 0 {
		gamesRatio = math.Min(float64(in.GamesPlayed)/in.AverageGames, 1.0)
	}
	scaling := c.cfg.MinVarietyScaling + (1.0-c.cfg.MinVarietyScaling)*gamesRatio*gamesRatio

	baseBonus := relativeDiff * scaling * c.cfg.MaxVarietyBonus

	if in.Percentile >= 0 {
		distanceFromMiddle := math.Abs(in.Percentile-50.0) / 50.0
		if distanceFromMiddle > tailDistanceThreshold {
			increase := 1.0 + tailCurve(in.Percentile)
			if baseBonus >= 0 {
				baseBonus *= increase
			} else {
				baseBonus *= 2.0 - increase
			}
		}
	}

	return clamp(baseBonus, c.cfg.MinVarietyBonus, c.cfg.MaxVarietyBonus)
}

// tailCurve maps an outer-decile percentile to a bonus multiplier in
// [tailCurveMin, tailCurveMax] along a normalized sigmoid. The bottom decile
// mirrors the top one.
func tailCurve(percentile float64) float64 {
	if percentile <= 10 {
		percentile = 100 - percentile
	}
	// x in [1, 10] across the decile.
	x := percentile - 89

	raw := sigmoid(x)
	minRaw := sigmoid(1)
	maxRaw := sigmoid(10)
	scaled := (raw - minRaw) / (maxRaw - minRaw)
	return tailCurveMin + scaled*(tailCurveMax-tailCurveMin)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sigmoidGrowthRate*(x-sigmoidMidpoint)))
}

// RatingPercentile places a rating in the live distribution, ties counted at
// half weight. An empty population yields the median.
func RatingPercentile(rating float64, population []float64) float64 {
	if len(population) == 0 {
		return 50.0
	}
	below, equal := 0.0, 0.0
	for _, r := range population {
		switch {
		case r < rating:
			below++
		case r == rating:
			equal++
		}
	}
	return (below + 0.5*equal) / float64(len(population)) * 100.0
}

// OpponentWeights normalizes a team's opponent match counts into a weight
// distribution for entropy. Opponents outside the variety window contribute
// nothing; lower-rated opponents inside it decay on the same cosine curve as
// gap scaling, so farming downward also erodes measured variety.
func (c *Calculator) OpponentWeights(teamRating float64, opponents map[string]OpponentRecord, ratingRange float64) map[string]float64 {
	varietyGap := ratingRange * c.cfg.MaxGapPercent
	weighted := make(map[string]float64, len(opponents))
	total := 0.0

	for id, opp := range opponents {
		gap := math.Abs(opp.Rating - teamRating)
		if varietyGap <= 0 || gap > varietyGap {
			continue
		}
		weight := 1.0
		if opp.Rating < teamRating {
			normalized := gap / varietyGap
			weight = (1.0 + math.Cos(math.Pi*normalized*gapCosineTaper)) / 2.0
		}
		w := float64(opp.Matches) * weight
		weighted[id] = w
		total += w
	}

	if total > 0 {
		for id := range weighted {
			weighted[id] /= total
		}
	}
	return weighted
}

// OpponentRecord summarizes one opponent in a team's encounter history.
type OpponentRecord struct {
	Matches int
	Rating  float64
}

// WeightedEntropy computes the Shannon entropy (bits) of a normalized weight
// distribution. Higher entropy means more diverse opposition.
func WeightedEntropy(weights map[string]float64) float64 {
	entropy := 0.0
	for _, w := range weights {
		if w > 0 {
			entropy -= w * math.Log2(w)
		}
	}
	return entropy
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
