// Package potential implements the proven-potential system: deferred,
// retroactive rating compensation for established teams whose early matches
// against a new team were priced off a rating gap the new team's later
// results proved wrong.
package potential

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
)

// Config holds the tunables of proven-potential tracking.
type Config struct {
	// TrackingMatches is how many of the new team's matches the record
	// stays live for before the window closes.
	TrackingMatches int

	// StepFraction is the compensation step size. Each step pays out the
	// established team's original change scaled by the step's cumulative
	// fraction.
	StepFraction float64

	// GapNormalizer converts the new team's absolute rating movement into
	// step units: one step per StepFraction*GapNormalizer rating points.
	GapNormalizer float64

	// MaxConfidence separates new from established teams.
	MaxConfidence float64

	// PayoutFactor damps each step's payout; full restoration would
	// overcorrect since the new team's climb is partly earned.
	PayoutFactor float64
}

// DefaultConfig returns the standard proven-potential tuning: 16-match
// window, 10% steps over a 1000-point normalizer, half payouts.
func DefaultConfig() Config {
	return Config{
		TrackingMatches: 16,
		StepFraction:    0.1,
		GapNormalizer:   1000.0,
		MaxConfidence:   1.0,
		PayoutFactor:    0.5,
	}
}

// Store is the persistence surface the tracker needs. Implementations must
// serialize writes per team and per record; the tracker performs plain
// read-modify-write sequences.
type Store interface {
	// TeamBracketStats resolves a team's current stats in a bracket.
	TeamBracketStats(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error)

	// OpenProvenPotentialRecords lists incomplete records whose new team
	// is teamID in the given bracket.
	OpenProvenPotentialRecords(ctx context.Context, teamID string, bracket model.Bracket) ([]*model.ProvenPotentialRecord, error)

	// SaveProvenPotentialRecord persists a new or mutated record.
	SaveProvenPotentialRecord(ctx context.Context, rec *model.ProvenPotentialRecord) error

	// AdjustTeamRating applies a signed delta to a team's current rating,
	// honoring the rating floor.
	AdjustTeamRating(ctx context.Context, teamID string, bracket model.Bracket, delta float64) error
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithConfig replaces the default tracking configuration.
func WithConfig(cfg Config) Option {
	return func(t *Tracker) {
		t.cfg = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// Tracker creates and incrementally resolves proven-potential records.
type Tracker struct {
	cfg   Config
	store Store
	log   logger.Logger
}

// New creates a Tracker backed by store.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:   DefaultConfig(),
		store: store,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.Get().Named("potential")
	}
	return t
}

// Eligible reports whether a completed match qualifies for tracking:
// exactly one side still below max confidence.
func (t *Tracker) Eligible(confidenceA, confidenceB float64) bool {
	aNew := confidenceA < t.cfg.MaxConfidence
	bNew := confidenceB < t.cfg.MaxConfidence
	return aNew != bNew
}

// MatchSide snapshots one side of a completed match for record creation.
type MatchSide struct {
	TeamID       string
	Rating       float64 // rating going into the match
	Confidence   float64
	RatingChange float64 // signed change the match produced
	GamesPlayed  int     // completed matches including this one
}

// CreateRecord opens a proven-potential record for an eligible match and
// persists it. Returns nil without error when the match does not qualify.
func (t *Tracker) CreateRecord(ctx context.Context, matchID string, bracket model.Bracket, a, b MatchSide) (*model.ProvenPotentialRecord, error) {
	if !t.Eligible(a.Confidence, b.Confidence) {
		return nil, nil
	}

	newSide, establishedSide := a, b
	if b.Confidence < t.cfg.MaxConfidence {
		newSide, establishedSide = b, a
	}

	now := time.Now().UTC()
	rec := &model.ProvenPotentialRecord{
		ID:                          uuid.NewString(),
		OriginalMatchID:             matchID,
		Bracket:                     bracket,
		NewTeamID:                   newSide.TeamID,
		EstablishedTeamID:           establishedSide.TeamID,
		NewTeamRating:               newSide.Rating,
		EstablishedTeamRating:       establishedSide.Rating,
		NewTeamConfidence:           newSide.Confidence,
		EstablishedTeamConfidence:   establishedSide.Confidence,
		NewTeamOriginalChange:       newSide.RatingChange,
		EstablishedOriginalChange:   establishedSide.RatingChange,
		AppliedSteps:                make(map[int]bool),
		NewTeamMatchCountAtCreation: newSide.GamesPlayed,
		CreatedAt:                   now,
		LastCheckedAt:               now,
	}

	if err := t.store.SaveProvenPotentialRecord(ctx, rec); err != nil {
		return nil, err
	}
	t.log.Debug(ctx, "opened proven potential record",
		logger.String("record", rec.ID),
		logger.String("newTeam", rec.NewTeamID),
		logger.String("establishedTeam", rec.EstablishedTeamID),
	)
	return rec, nil
}

// CheckResult summarizes one resolution pass.
type CheckResult struct {
	RecordsChecked   int
	RecordsCompleted int
	// Adjustments holds the summed signed delta applied per established
	// team id.
	Adjustments map[string]float64
}

// CheckTeam re-evaluates every open record whose new team is teamID, applies
// newly crossed compensation steps, closes tracking windows, and completes
// records. Invoked after each of the new team's matches; a no-op until the
// team reaches max confidence.
//
// A fetch or save failure on one record is logged and skips that record
// only; the rest of the batch proceeds.
func (t *Tracker) CheckTeam(ctx context.Context, teamID string, bracket model.Bracket, currentRating, currentConfidence float64, matchID string) (CheckResult, error) {
	res := CheckResult{Adjustments: make(map[string]float64)}

	if currentConfidence < t.cfg.MaxConfidence {
		return res, nil
	}

	records, err := t.store.OpenProvenPotentialRecords(ctx, teamID, bracket)
	if err != nil {
		return res, err
	}

	for _, rec := range records {
		res.RecordsChecked++

		adjustment := t.applySteps(rec, currentRating)
		if adjustment != 0 {
			res.Adjustments[rec.EstablishedTeamID] += adjustment
		}
		rec.LastCheckedAt = time.Now().UTC()

		if t.closeWindow(ctx, rec, matchID, currentConfidence) {
			res.RecordsCompleted++
		}

		if err := t.store.SaveProvenPotentialRecord(ctx, rec); err != nil {
			t.log.Error(ctx, "failed to save proven potential record; skipping",
				logger.String("record", rec.ID), logger.Error(err))
			continue
		}
	}

	// One rating write per established team, however many records fed it.
	for establishedID, delta := range res.Adjustments {
		if err := t.store.AdjustTeamRating(ctx, establishedID, bracket, delta); err != nil {
			t.log.Error(ctx, "failed to apply proven potential adjustment; skipping team",
				logger.String("team", establishedID), logger.Error(err))
			continue
		}
		t.log.Info(ctx, "applied proven potential adjustment",
			logger.String("team", establishedID),
			logger.Float64("delta", delta),
		)
	}

	return res, nil
}

// applySteps pays out every compensation step the new team's rating movement
// has crossed and not yet applied. Returns the signed delta owed to the
// established team.
func (t *Tracker) applySteps(rec *model.ProvenPotentialRecord, currentRating float64) float64 {
	ratingGap := math.Abs(currentRating - rec.NewTeamRating)
	stepsCrossed := int(ratingGap / (t.cfg.StepFraction * t.cfg.GapNormalizer))

	total := 0.0
	for step := 1; step <= stepsCrossed; step++ {
		if rec.StepApplied(step) {
			continue
		}
		fraction := float64(step) * t.cfg.StepFraction
		magnitude := math.Abs(rec.EstablishedOriginalChange) * fraction * t.cfg.PayoutFactor

		// Restore what the established team lost, or revoke what it
		// gained, from a mispriced opponent.
		delta := magnitude
		if rec.EstablishedOriginalChange > 0 {
			delta = -magnitude
		}

		total += delta
		rec.MarkStepApplied(step)
	}
	rec.RatingAdjustment += total
	return total
}

// closeWindow stamps the tracking end once the new team has played out the
// window, and completes the record when the window is closed and the team is
// fully confident. Returns true when the record completed.
func (t *Tracker) closeWindow(ctx context.Context, rec *model.ProvenPotentialRecord, matchID string, currentConfidence float64) bool {
	stats, err := t.store.TeamBracketStats(ctx, rec.NewTeamID, rec.Bracket)
	if err != nil {
		t.log.Error(ctx, "failed to fetch new team stats; skipping window check",
			logger.String("record", rec.ID), logger.Error(err))
		return false
	}

	matchesSinceCreation := stats.GamesPlayed() - rec.NewTeamMatchCountAtCreation
	if matchesSinceCreation >= t.cfg.TrackingMatches && rec.TrackingEndMatchID == "" {
		rec.TrackingEndMatchID = matchID
	}

	if rec.TrackingEndMatchID != "" && currentConfidence >= t.cfg.MaxConfidence && !rec.IsComplete {
		rec.IsComplete = true
		return true
	}
	return false
}
