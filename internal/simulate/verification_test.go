package simulate

import (
	"math"
	"testing"
)

func TestSkillRankCorrelation(t *testing.T) {
	teams := []Team{
		{ID: "a", Skill: 1400},
		{ID: "b", Skill: 1200},
		{ID: "c", Skill: 1000},
		{ID: "d", Skill: 800},
	}

	t.Run("leaderboard matching skill order", func(t *testing.T) {
		leaderboard := []Entry{
			{Rank: 1, TeamID: "a"},
			{Rank: 2, TeamID: "b"},
			{Rank: 3, TeamID: "c"},
			{Rank: 4, TeamID: "d"},
		}
		if got := skillRankCorrelation(teams, leaderboard); got != 1.0 {
			t.Errorf("perfect ordering: got %v, want 1.0", got)
		}
	})

	t.Run("inverted leaderboard", func(t *testing.T) {
		leaderboard := []Entry{
			{Rank: 1, TeamID: "d"},
			{Rank: 2, TeamID: "c"},
			{Rank: 3, TeamID: "b"},
			{Rank: 4, TeamID: "a"},
		}
		if got := skillRankCorrelation(teams, leaderboard); got != -1.0 {
			t.Errorf("inverted ordering: got %v, want -1.0", got)
		}
	})

	t.Run("single swap stays high", func(t *testing.T) {
		leaderboard := []Entry{
			{Rank: 1, TeamID: "a"},
			{Rank: 2, TeamID: "c"},
			{Rank: 3, TeamID: "b"},
			{Rank: 4, TeamID: "d"},
		}
		got := skillRankCorrelation(teams, leaderboard)
		if got <= 0.5 || got >= 1.0 {
			t.Errorf("one adjacent swap: got %v, want in (0.5, 1.0)", got)
		}
	})

	t.Run("unknown trailing teams are ignored", func(t *testing.T) {
		leaderboard := []Entry{
			{Rank: 1, TeamID: "a"},
			{Rank: 2, TeamID: "b"},
			{Rank: 3, TeamID: "ghost"},
		}
		got := skillRankCorrelation(teams, leaderboard)
		if math.Abs(got-1.0) > 1e-9 {
			t.Errorf("with trailing unknown entry: got %v, want 1.0", got)
		}
	})

	t.Run("fewer than two known teams", func(t *testing.T) {
		if got := skillRankCorrelation(teams, []Entry{{Rank: 1, TeamID: "a"}}); got != 0 {
			t.Errorf("single entry: got %v, want 0", got)
		}
	})
}
