package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/potential"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// validateMatch rejects results the pipeline cannot rate.
func validateMatch(m model.MatchResult) error {
	if m.MatchID == "" {
		return fmt.Errorf("%w: empty match id", ErrInvalidMatch)
	}
	if m.WinnerID == "" || m.LoserID == "" {
		return fmt.Errorf("%w: empty team id", ErrInvalidMatch)
	}
	if m.WinnerID == m.LoserID {
		return fmt.Errorf("%w: winner and loser are the same team", ErrInvalidMatch)
	}
	if _, err := model.ParseBracket(string(m.Bracket)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMatch, err)
	}
	if m.WinnerScore < m.LoserScore {
		return fmt.Errorf("%w: winner score below loser score", ErrInvalidMatch)
	}
	return nil
}

// ratedMatch carries the committed outcome of the serialized rating section
// into post-commit upkeep.
type ratedMatch struct {
	winner, loser   model.TeamBracketStats
	preWinnerRating float64
	preLoserRating  float64
	winnerConf      float64
	loserConf       float64
	result          rating.ChangeResult
	ratingRange     float64
	population      []float64
}

// ProcessMatch runs the full rating pipeline for one completed match: resolve
// both teams, compute and persist the rating changes, update encounter and
// variety state, and drive proven-potential tracking. Workers invoke this for
// every dequeued match.
func (s *Service) ProcessMatch(ctx context.Context, m model.MatchResult) error {
	rated, err := s.rateMatch(ctx, m)
	if err != nil {
		return err
	}

	// Post-commit upkeep runs after the pair lock is released: variety
	// refresh only degrades freshness on failure, and proven-potential
	// tracking takes its own stripes, which must never nest inside this
	// match's.
	if err := s.refreshVariety(ctx, rated.winner, rated.ratingRange, rated.population); err != nil {
		s.logger.Error(ctx, "failed to refresh winner variety stats",
			logger.String("team", m.WinnerID), logger.Error(err))
	}
	if err := s.refreshVariety(ctx, rated.loser, rated.ratingRange, rated.population); err != nil {
		s.logger.Error(ctx, "failed to refresh loser variety stats",
			logger.String("team", m.LoserID), logger.Error(err))
	}

	s.trackPotential(ctx, m, rated)

	metrics.RecordRatingChange(math.Abs(rated.result.WinnerChange))
	if rated.result.WinnerCatchUpBonus > 0 {
		metrics.RecordCatchUpBonusApplied()
	}
	if rated.result.GapScaling < 1.0 {
		metrics.RecordGapScalingApplied()
	}

	s.logger.Debug(ctx, "match rated",
		logger.String("matchID", m.MatchID),
		logger.String("bracket", string(m.Bracket)),
		logger.Float64("winnerChange", rated.result.WinnerChange),
		logger.Float64("loserChange", rated.result.LoserChange),
		logger.Float64("gapScaling", rated.result.GapScaling),
	)
	return nil
}

// rateMatch runs the serialized section of the pipeline: resolve both teams,
// compute the rating changes, and persist stats and encounters, all under the
// pair's stripe locks so no other rating write for either team can land
// inside the fetch-compute-write window.
func (s *Service) rateMatch(ctx context.Context, m model.MatchResult) (ratedMatch, error) {
	unlock := s.locks.lockPair(m.WinnerID, m.LoserID)
	defer unlock()

	winner, err := s.store.EnsureTeam(ctx, m.WinnerID, m.Bracket)
	if err != nil {
		return ratedMatch{}, fmt.Errorf("resolve winner: %w", err)
	}
	loser, err := s.store.EnsureTeam(ctx, m.LoserID, m.Bracket)
	if err != nil {
		return ratedMatch{}, fmt.Errorf("resolve loser: %w", err)
	}

	winnerConf := s.calculator.Confidence(winner.GamesPlayed())
	loserConf := s.calculator.Confidence(loser.GamesPlayed())

	winnerVariety, err := s.store.VarietyStats(ctx, m.WinnerID, m.Bracket)
	if err != nil {
		return ratedMatch{}, fmt.Errorf("winner variety: %w", err)
	}
	loserVariety, err := s.store.VarietyStats(ctx, m.LoserID, m.Bracket)
	if err != nil {
		return ratedMatch{}, fmt.Errorf("loser variety: %w", err)
	}

	ratingRange, population, err := s.bracketRange(ctx, m.Bracket)
	if err != nil {
		return ratedMatch{}, fmt.Errorf("bracket range: %w", err)
	}

	result, err := s.calculator.CalculateRatingChange(
		rating.Side{TeamID: m.WinnerID, Rating: winner.CurrentRating, Confidence: winnerConf, Variety: winnerVariety},
		rating.Side{TeamID: m.LoserID, Rating: loser.CurrentRating, Confidence: loserConf, Variety: loserVariety},
		ratingRange,
	)
	if err != nil {
		return ratedMatch{}, fmt.Errorf("calculate change: %w", err)
	}

	preWinnerRating := winner.CurrentRating
	preLoserRating := loser.CurrentRating

	now := time.Now().UTC()
	s.applyOutcome(&winner, result.WinnerChange, true, now)
	s.applyOutcome(&loser, result.LoserChange, false, now)

	if err := s.store.SaveTeamBracketStats(ctx, winner); err != nil {
		return ratedMatch{}, fmt.Errorf("save winner: %w", err)
	}
	if err := s.store.SaveTeamBracketStats(ctx, loser); err != nil {
		return ratedMatch{}, fmt.Errorf("save loser: %w", err)
	}

	if err := s.store.RecordEncounter(ctx, m.WinnerID, m.LoserID, m.Bracket); err != nil {
		return ratedMatch{}, fmt.Errorf("record encounter: %w", err)
	}
	if err := s.store.RecordEncounter(ctx, m.LoserID, m.WinnerID, m.Bracket); err != nil {
		return ratedMatch{}, fmt.Errorf("record encounter: %w", err)
	}

	return ratedMatch{
		winner:          winner,
		loser:           loser,
		preWinnerRating: preWinnerRating,
		preLoserRating:  preLoserRating,
		winnerConf:      winnerConf,
		loserConf:       loserConf,
		result:          result,
		ratingRange:     ratingRange,
		population:      population,
	}, nil
}

// applyOutcome folds a rating change and win/loss into a team's stats.
func (s *Service) applyOutcome(stats *model.TeamBracketStats, change float64, won bool, now time.Time) {
	stats.CurrentRating = s.calculator.ApplyChange(stats.CurrentRating, change)
	if stats.CurrentRating > stats.HighestRating {
		stats.HighestRating = stats.CurrentRating
	}
	if won {
		stats.Wins++
	} else {
		stats.Losses++
	}
	stats.Confidence = s.calculator.Confidence(stats.GamesPlayed())
	stats.RecentRatingChange = change
	stats.LastUpdated = now
}

// bracketRange computes the live rating spread of a bracket along with the
// raw population, reused for percentile placement.
func (s *Service) bracketRange(ctx context.Context, bracket model.Bracket) (float64, []float64, error) {
	population, err := s.store.PopulationRatings(ctx, bracket)
	if err != nil {
		return 0, nil, err
	}
	if len(population) == 0 {
		return 0, population, nil
	}
	lo, hi := population[0], population[0]
	for _, r := range population[1:] {
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	return hi - lo, population, nil
}

// refreshVariety recomputes a team's entropy and variety bonus from its full
// encounter history and persists the result.
func (s *Service) refreshVariety(ctx context.Context, stats model.TeamBracketStats, ratingRange float64, population []float64) error {
	encounters, err := s.store.OpponentEncounters(ctx, stats.TeamID, stats.Bracket)
	if err != nil {
		return err
	}
	if len(encounters) == 0 {
		return nil
	}

	opponents := make(map[string]rating.OpponentRecord, len(encounters))
	for opponentID, matches := range encounters {
		opp, err := s.store.TeamBracketStats(ctx, opponentID, stats.Bracket)
		if err != nil {
			// Opponent may have been pruned; weight it at the team's
			// own rating so it still counts toward diversity.
			opp.CurrentRating = stats.CurrentRating
		}
		opponents[opponentID] = rating.OpponentRecord{Matches: matches, Rating: opp.CurrentRating}
	}

	weights := s.calculator.OpponentWeights(stats.CurrentRating, opponents, ratingRange)
	entropy := rating.WeightedEntropy(weights)

	averages, err := s.store.Averages(ctx, stats.Bracket)
	if err != nil {
		return err
	}

	bonus := s.calculator.ComputeVarietyBonus(rating.VarietyInput{
		TeamEntropy:    entropy,
		AverageEntropy: averages.AverageEntropy,
		GamesPlayed:    stats.GamesPlayed(),
		AverageGames:   averages.AverageGames,
		Percentile:     rating.RatingPercentile(stats.CurrentRating, population),
	})

	return s.store.SaveVarietyStats(ctx, model.VarietyStats{
		TeamID:         stats.TeamID,
		Bracket:        stats.Bracket,
		VarietyEntropy: entropy,
		VarietyBonus:   bonus,
		UpdatedAt:      time.Now().UTC(),
	})
}

// trackPotential opens a proven-potential record when the match qualifies and
// re-evaluates both teams' open records. Tracking failures are logged, never
// fatal: the ratings for this match are already committed.
//
// Callers must not hold any stripe locks; the checks below take their own.
func (s *Service) trackPotential(ctx context.Context, m model.MatchResult, rated ratedMatch) {
	_, err := s.tracker.CreateRecord(ctx, m.MatchID, m.Bracket,
		potential.MatchSide{
			TeamID:       m.WinnerID,
			Rating:       rated.preWinnerRating,
			Confidence:   rated.winnerConf,
			RatingChange: rated.result.WinnerChange,
			GamesPlayed:  rated.winner.GamesPlayed(),
		},
		potential.MatchSide{
			TeamID:       m.LoserID,
			Rating:       rated.preLoserRating,
			Confidence:   rated.loserConf,
			RatingChange: rated.result.LoserChange,
			GamesPlayed:  rated.loser.GamesPlayed(),
		},
	)
	if err != nil {
		s.logger.Error(ctx, "failed to open proven potential record",
			logger.String("matchID", m.MatchID), logger.Error(err))
	}

	// Both sides are checked every match; the confidence gate lives inside
	// the tracker, so a side with no settled climb costs one record listing.
	for _, side := range []model.TeamBracketStats{rated.winner, rated.loser} {
		open, err := s.store.OpenProvenPotentialRecords(ctx, side.TeamID, side.Bracket)
		if err != nil {
			s.logger.Error(ctx, "failed to list proven potential records",
				logger.String("team", side.TeamID), logger.Error(err))
			continue
		}
		if len(open) == 0 {
			continue
		}

		// The check's own stripe serializes concurrent checks of the same
		// records; the established teams' stripes keep each compensation
		// write out of another match's fetch-compute-write window. Listing
		// before locking cannot miss a record: a settled team gains no new
		// open records, and an unsettled team's check is a no-op.
		ids := make([]string, 0, len(open)+1)
		ids = append(ids, side.TeamID)
		for _, rec := range open {
			ids = append(ids, rec.EstablishedTeamID)
		}
		unlock := s.locks.lockMany(ids...)
		res, err := s.tracker.CheckTeam(ctx, side.TeamID, side.Bracket,
			side.CurrentRating, side.Confidence, m.MatchID)
		unlock()
		if err != nil {
			s.logger.Error(ctx, "proven potential check failed",
				logger.String("team", side.TeamID), logger.Error(err))
			continue
		}
		for _, delta := range res.Adjustments {
			metrics.RecordProvenPotentialAdjustment(math.Abs(delta))
		}
		for i := 0; i < res.RecordsCompleted; i++ {
			metrics.RecordProvenPotentialCompleted()
		}
	}
}
