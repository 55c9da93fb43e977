package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/ladder/internal/domain/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// PGStore implements Store on Postgres through pgx. Every method is a single
// statement or transaction, so the atomicity contract holds without advisory
// locks.
type PGStore struct {
	pool *pgxpool.Pool

	startingRating float64
	minimumRating  float64
}

// PGOption applies a configuration option to the PGStore.
type PGOption func(*PGStore)

// WithPGStartingRating sets the rating seeded for first-contact teams.
func WithPGStartingRating(rating float64) PGOption {
	return func(s *PGStore) {
		if rating > 0 {
			s.startingRating = rating
		}
	}
}

// WithPGMinimumRating sets the rating floor enforced on adjustments.
func WithPGMinimumRating(rating float64) PGOption {
	return func(s *PGStore) {
		if rating > 0 {
			s.minimumRating = rating
		}
	}
}

// OpenPG connects to Postgres, applies the schema, and returns the store.
func OpenPG(ctx context.Context, dsn string, opts ...PGOption) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PGStore{
		pool:           pool,
		startingRating: defaultStartingRating,
		minimumRating:  defaultMinimumRating,
	}
	for _, opt := range opts {
		opt(s)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// EnsureTeam resolves a team's stats, seeding the starting rating on first
// contact.
func (s *PGStore) EnsureTeam(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_bracket_stats(team_id, bracket, current_rating, initial_rating, highest_rating)
		VALUES ($1, $2, $3, $3, $3)
		ON CONFLICT (team_id, bracket) DO NOTHING
	`, teamID, string(bracket), s.startingRating)
	if err != nil {
		return model.TeamBracketStats{}, err
	}
	return s.TeamBracketStats(ctx, teamID, bracket)
}

// TeamBracketStats resolves existing stats.
func (s *PGStore) TeamBracketStats(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error) {
	var st model.TeamBracketStats
	var br string
	err := s.pool.QueryRow(ctx, `
		SELECT team_id, bracket, current_rating, initial_rating, highest_rating,
		       wins, losses, confidence, recent_change, last_updated
		  FROM team_bracket_stats
		 WHERE team_id = $1 AND bracket = $2
	`, teamID, string(bracket)).Scan(
		&st.TeamID, &br, &st.CurrentRating, &st.InitialRating, &st.HighestRating,
		&st.Wins, &st.Losses, &st.Confidence, &st.RecentRatingChange, &st.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TeamBracketStats{}, fmt.Errorf("%w: %s in %s", ErrNotFound, teamID, bracket)
	}
	if err != nil {
		return model.TeamBracketStats{}, err
	}
	st.Bracket = model.Bracket(br)
	return st, nil
}

// SaveTeamBracketStats overwrites a team's stats.
func (s *PGStore) SaveTeamBracketStats(ctx context.Context, stats model.TeamBracketStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_bracket_stats(team_id, bracket, current_rating, initial_rating, highest_rating,
		                               wins, losses, confidence, recent_change, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (team_id, bracket) DO UPDATE SET
		    current_rating = EXCLUDED.current_rating,
		    highest_rating = EXCLUDED.highest_rating,
		    wins           = EXCLUDED.wins,
		    losses         = EXCLUDED.losses,
		    confidence     = EXCLUDED.confidence,
		    recent_change  = EXCLUDED.recent_change,
		    last_updated   = EXCLUDED.last_updated
	`, stats.TeamID, string(stats.Bracket), stats.CurrentRating, stats.InitialRating, stats.HighestRating,
		stats.Wins, stats.Losses, stats.Confidence, stats.RecentRatingChange, stats.LastUpdated)
	return err
}

// AdjustTeamRating applies a signed delta in one atomic statement.
func (s *PGStore) AdjustTeamRating(ctx context.Context, teamID string, bracket model.Bracket, delta float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE team_bracket_stats
		   SET current_rating = GREATEST($4, current_rating + $3),
		       highest_rating = GREATEST(highest_rating, GREATEST($4, current_rating + $3)),
		       last_updated   = now()
		 WHERE team_id = $1 AND bracket = $2
	`, teamID, string(bracket), delta, s.minimumRating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s in %s", ErrNotFound, teamID, bracket)
	}
	return nil
}

// VarietyStats returns a team's variety stats, nil when never computed.
func (s *PGStore) VarietyStats(ctx context.Context, teamID string, bracket model.Bracket) (*model.VarietyStats, error) {
	var vs model.VarietyStats
	var br string
	err := s.pool.QueryRow(ctx, `
		SELECT team_id, bracket, entropy, bonus, updated_at
		  FROM variety_stats
		 WHERE team_id = $1 AND bracket = $2
	`, teamID, string(bracket)).Scan(&vs.TeamID, &br, &vs.VarietyEntropy, &vs.VarietyBonus, &vs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	vs.Bracket = model.Bracket(br)
	return &vs, nil
}

// SaveVarietyStats overwrites a team's variety stats.
func (s *PGStore) SaveVarietyStats(ctx context.Context, stats model.VarietyStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO variety_stats(team_id, bracket, entropy, bonus, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id, bracket) DO UPDATE SET
		    entropy = EXCLUDED.entropy,
		    bonus = EXCLUDED.bonus,
		    updated_at = EXCLUDED.updated_at
	`, stats.TeamID, string(stats.Bracket), stats.VarietyEntropy, stats.VarietyBonus, stats.UpdatedAt)
	return err
}

// RecordEncounter increments the match count against an opponent.
func (s *PGStore) RecordEncounter(ctx context.Context, teamID, opponentID string, bracket model.Bracket) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opponent_encounters(team_id, bracket, opponent_id, matches)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (team_id, bracket, opponent_id) DO UPDATE SET
		    matches = opponent_encounters.matches + 1
	`, teamID, string(bracket), opponentID)
	return err
}

// OpponentEncounters returns a team's per-opponent match counts.
func (s *PGStore) OpponentEncounters(ctx context.Context, teamID string, bracket model.Bracket) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT opponent_id, matches
		  FROM opponent_encounters
		 WHERE team_id = $1 AND bracket = $2
	`, teamID, string(bracket))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// PopulationRatings lists every current rating in a bracket.
func (s *PGStore) PopulationRatings(ctx context.Context, bracket model.Bracket) ([]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT current_rating FROM team_bracket_stats WHERE bracket = $1`, string(bracket))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// Averages returns population average entropy and games for a bracket.
func (s *PGStore) Averages(ctx context.Context, bracket model.Bracket) (BracketAverages, error) {
	var out BracketAverages
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT AVG(entropy) FROM variety_stats WHERE bracket = $1), 0),
		       COALESCE((SELECT AVG(wins + losses) FROM team_bracket_stats WHERE bracket = $1), 0)
	`, string(bracket)).Scan(&out.AverageEntropy, &out.AverageGames)
	return out, err
}

// OpenProvenPotentialRecords lists incomplete records for a new team.
func (s *PGStore) OpenProvenPotentialRecords(ctx context.Context, teamID string, bracket model.Bracket) ([]*model.ProvenPotentialRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, original_match_id, bracket, new_team_id, established_team_id,
		       new_rating, established_rating, new_confidence, established_confidence,
		       new_original_change, established_original_change, applied_steps,
		       rating_adjustment, new_match_count_at_creation, tracking_end_match_id,
		       is_complete, created_at, last_checked_at
		  FROM proven_potential_records
		 WHERE new_team_id = $1 AND bracket = $2 AND NOT is_complete
		 ORDER BY created_at
	`, teamID, string(bracket))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ProvenPotentialRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows pgx.Rows) (*model.ProvenPotentialRecord, error) {
	var rec model.ProvenPotentialRecord
	var br string
	var steps []byte
	if err := rows.Scan(
		&rec.ID, &rec.OriginalMatchID, &br, &rec.NewTeamID, &rec.EstablishedTeamID,
		&rec.NewTeamRating, &rec.EstablishedTeamRating, &rec.NewTeamConfidence, &rec.EstablishedTeamConfidence,
		&rec.NewTeamOriginalChange, &rec.EstablishedOriginalChange, &steps,
		&rec.RatingAdjustment, &rec.NewTeamMatchCountAtCreation, &rec.TrackingEndMatchID,
		&rec.IsComplete, &rec.CreatedAt, &rec.LastCheckedAt,
	); err != nil {
		return nil, err
	}
	rec.Bracket = model.Bracket(br)

	var applied []int
	if err := json.Unmarshal(steps, &applied); err != nil {
		return nil, fmt.Errorf("decode applied steps: %w", err)
	}
	rec.AppliedSteps = make(map[int]bool, len(applied))
	for _, s := range applied {
		rec.AppliedSteps[s] = true
	}
	return &rec, nil
}

// SaveProvenPotentialRecord persists a new or mutated record.
func (s *PGStore) SaveProvenPotentialRecord(ctx context.Context, rec *model.ProvenPotentialRecord) error {
	steps, err := json.Marshal(rec.AppliedStepList())
	if err != nil {
		return err
	}
	if rec.LastCheckedAt.IsZero() {
		rec.LastCheckedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO proven_potential_records(
		    id, original_match_id, bracket, new_team_id, established_team_id,
		    new_rating, established_rating, new_confidence, established_confidence,
		    new_original_change, established_original_change, applied_steps,
		    rating_adjustment, new_match_count_at_creation, tracking_end_match_id,
		    is_complete, created_at, last_checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
		    applied_steps         = EXCLUDED.applied_steps,
		    rating_adjustment     = EXCLUDED.rating_adjustment,
		    tracking_end_match_id = EXCLUDED.tracking_end_match_id,
		    is_complete           = EXCLUDED.is_complete,
		    last_checked_at       = EXCLUDED.last_checked_at
	`, rec.ID, rec.OriginalMatchID, string(rec.Bracket), rec.NewTeamID, rec.EstablishedTeamID,
		rec.NewTeamRating, rec.EstablishedTeamRating, rec.NewTeamConfidence, rec.EstablishedTeamConfidence,
		rec.NewTeamOriginalChange, rec.EstablishedOriginalChange, steps,
		rec.RatingAdjustment, rec.NewTeamMatchCountAtCreation, rec.TrackingEndMatchID,
		rec.IsComplete, rec.CreatedAt, rec.LastCheckedAt)
	return err
}

// Leaderboard returns the top-n entries for a bracket, rating desc.
func (s *PGStore) Leaderboard(ctx context.Context, bracket model.Bracket, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT team_id, current_rating, wins, losses, confidence
		  FROM team_bracket_stats
		 WHERE bracket = $1
		 ORDER BY current_rating DESC, team_id
		 LIMIT $2
	`, string(bracket), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TeamID, &e.Rating, &e.Wins, &e.Losses, &e.Confidence); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of teams tracked in a bracket.
func (s *PGStore) Count(ctx context.Context, bracket model.Bracket) int {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_bracket_stats WHERE bracket = $1`, string(bracket)).Scan(&n); err != nil {
		return 0
	}
	return n
}
