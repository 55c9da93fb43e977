package simulate

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ladder/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	skillTierDivisor   = 8
	eloSkillDivisor    = 400.0
	maxGamesPerSeries  = 3
)

// Hidden skill tiers on the Elo scale. The distribution intentionally skews
// toward the middle with thin elite and struggling tails, the shape a real
// ladder settles into.
const (
	averageSkillMin    = 900.0
	averageSkillRange  = 200.0
	strongSkillMin     = 1100.0
	strongSkillRange   = 200.0
	weakSkillMin       = 700.0
	weakSkillRange     = 200.0
	eliteSkillMin      = 1300.0
	eliteSkillRange    = 200.0
	flooredSkillMin    = 600.0
	flooredSkillRange  = 100.0
	upperMidSkillMin   = 1000.0
	upperMidSkillRange = 150.0
	lowerMidSkillMin   = 850.0
	lowerMidSkillRange = 150.0
	fullSkillMin       = 600.0
	fullSkillRange     = 900.0
)

// Skill tier cases.
const (
	caseAverage  = 0
	caseStrong   = 1
	caseWeak     = 2
	caseElite    = 3
	caseFloored  = 4
	caseUpperMid = 5
	caseLowerMid = 6
	caseFullSpan = 7
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomIntn returns a uniform random int in [0, n).
func randomIntn(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// generateTeams creates the population with hidden skills drawn from tiers.
func generateTeams(ctx context.Context, config *Config, stats *Stats) []Team {
	logger.Get().Info(ctx, "generating teams with hidden skills", logger.Int("numTeams", config.NumTeams))

	teams := make([]Team, config.NumTeams)
	for i := range teams {
		teams[i] = Team{
			ID:    "team-" + uuid.New().String(),
			Skill: generateSkill(),
		}
	}

	stats.TeamsGenerated = len(teams)
	return teams
}

// generateSkill draws a hidden skill from the tier distribution.
func generateSkill() float64 {
	switch randomIntn(skillTierDivisor) {
	case caseAverage:
		return averageSkillMin + getRandomFloat()*averageSkillRange
	case caseStrong:
		return strongSkillMin + getRandomFloat()*strongSkillRange
	case caseWeak:
		return weakSkillMin + getRandomFloat()*weakSkillRange
	case caseElite:
		return eliteSkillMin + getRandomFloat()*eliteSkillRange
	case caseFloored:
		return flooredSkillMin + getRandomFloat()*flooredSkillRange
	case caseUpperMid:
		return upperMidSkillMin + getRandomFloat()*upperMidSkillRange
	case caseLowerMid:
		return lowerMidSkillMin + getRandomFloat()*lowerMidSkillRange
	case caseFullSpan:
		return fullSkillMin + getRandomFloat()*fullSkillRange
	default:
		return fullSkillMin + getRandomFloat()*fullSkillRange
	}
}

// generateMatches pairs teams and samples outcomes from their hidden skills:
// the probability that A beats B follows the logistic curve on the skill gap,
// so a well-tuned ladder should recover the skill ordering.
func generateMatches(ctx context.Context, config *Config, teams []Team, stats *Stats) []Match {
	logger.Get().Info(ctx, "simulating matches", logger.Int("numMatches", config.NumMatches))

	matches := make([]Match, 0, config.NumMatches)
	for i := 0; i < config.NumMatches; i++ {
		a := teams[randomIntn(int64(len(teams)))]
		b := teams[randomIntn(int64(len(teams)))]
		if a.ID == b.ID {
			i--
			continue
		}

		winner, loser := a, b
		pA := 1.0 / (1.0 + math.Pow(10, (b.Skill-a.Skill)/eloSkillDivisor))
		if getRandomFloat() > pA {
			winner, loser = b, a
		}

		winnerScore := int(maxGamesPerSeries)
		loserScore := int(randomIntn(maxGamesPerSeries))

		matches = append(matches, Match{
			MatchID:     "match-" + strconv.Itoa(i) + "-" + uuid.New().String(),
			Bracket:     config.Bracket,
			WinnerID:    winner.ID,
			LoserID:     loser.ID,
			WinnerScore: winnerScore,
			LoserScore:  loserScore,
			CompletedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}

	stats.MatchesGenerated = len(matches)
	return matches
}
