package simulate

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/ladder/pkg/logger"
)

// verifyResults checks that the ladder recovered the hidden skill ordering:
// the leaderboard must be sorted, and the Spearman rank correlation between
// hidden skill and achieved rating should be strongly positive.
func verifyResults(ctx context.Context, config *Config, teams []Team, leaderboard []Entry, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Rating > leaderboard[i-1].Rating {
			return fmt.Errorf("leaderboard not sorted: entry %d above entry %d", i, i-1)
		}
	}

	stats.RankCorrelation = skillRankCorrelation(teams, leaderboard)
	logger.Get().Info(ctx, "skill recovery",
		logger.Float64("rankCorrelation", stats.RankCorrelation),
		logger.Int("leaderboardEntries", len(leaderboard)))

	displayTopTeams(ctx, teams, leaderboard, config.Verbose)
	return nil
}

// skillRankCorrelation computes the Spearman correlation between hidden skill
// rank and leaderboard rank over the teams present on the leaderboard.
func skillRankCorrelation(teams []Team, leaderboard []Entry) float64 {
	skills := make(map[string]float64, len(teams))
	for _, t := range teams {
		skills[t.ID] = t.Skill
	}

	// Rank the leaderboard teams by hidden skill, descending.
	type ranked struct {
		id    string
		skill float64
	}
	bySkill := make([]ranked, 0, len(leaderboard))
	for _, e := range leaderboard {
		skill, ok := skills[e.TeamID]
		if !ok {
			continue
		}
		bySkill = append(bySkill, ranked{id: e.TeamID, skill: skill})
	}
	if len(bySkill) < 2 {
		return 0
	}
	sort.Slice(bySkill, func(i, j int) bool { return bySkill[i].skill > bySkill[j].skill })

	skillRank := make(map[string]int, len(bySkill))
	for i, r := range bySkill {
		skillRank[r.id] = i
	}

	// Spearman: 1 - 6*sum(d^2) / (n*(n^2-1)).
	n := 0
	sumD2 := 0.0
	for ladderRank, e := range leaderboard {
		sRank, ok := skillRank[e.TeamID]
		if !ok {
			continue
		}
		d := float64(ladderRank - sRank)
		sumD2 += d * d
		n++
	}
	if n < 2 {
		return 0
	}
	nf := float64(n)
	return 1.0 - (6.0*sumD2)/(nf*(nf*nf-1.0))
}

// displayTopTeams logs the leaderboard head with each team's hidden skill.
func displayTopTeams(ctx context.Context, teams []Team, leaderboard []Entry, verbose bool) {
	skills := make(map[string]float64, len(teams))
	for _, t := range teams {
		skills[t.ID] = t.Skill
	}

	topN := 10
	if len(leaderboard) < topN {
		topN = len(leaderboard)
	}
	for i := 0; i < topN; i++ {
		e := leaderboard[i]
		logger.Get().Info(ctx, "leaderboard entry",
			logger.Int("rank", e.Rank),
			logger.String("team", e.TeamID),
			logger.Float64("rating", e.Rating),
			logger.Float64("hiddenSkill", skills[e.TeamID]),
			logger.Int("wins", e.Wins),
			logger.Int("losses", e.Losses))
	}

	if verbose && len(leaderboard) > 0 {
		sum := 0.0
		for _, e := range leaderboard {
			sum += e.Rating
		}
		logger.Get().Info(ctx, "rating statistics",
			logger.Float64("average", sum/float64(len(leaderboard))),
			logger.Float64("maximum", leaderboard[0].Rating),
			logger.Float64("minimum", leaderboard[len(leaderboard)-1].Rating))
	}
}
