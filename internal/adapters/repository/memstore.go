package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount     = 8
	defaultStartingRating = 1000.0
	defaultMinimumRating  = 600.0
)

// MemStore implements Store with sharded in-memory maps. Shards are keyed by
// team id so hot teams in different shards never contend.
type MemStore struct {
	shards     []*shard
	shardCount int

	startingRating float64
	minimumRating  float64
}

type teamKey struct {
	bracket model.Bracket
	teamID  string
}

type shard struct {
	mu         sync.RWMutex
	teams      map[teamKey]model.TeamBracketStats
	variety    map[teamKey]model.VarietyStats
	encounters map[teamKey]map[string]int
	// records indexed by the new team, the only lookup dimension checks use.
	records map[teamKey][]*model.ProvenPotentialRecord
}

func newShard() *shard {
	return &shard{
		teams:      make(map[teamKey]model.TeamBracketStats),
		variety:    make(map[teamKey]model.VarietyStats),
		encounters: make(map[teamKey]map[string]int),
		records:    make(map[teamKey][]*model.ProvenPotentialRecord),
	}
}

// NewMemStore creates an in-memory store with configuration options.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		shardCount:     defaultShardCount,
		startingRating: defaultStartingRating,
		minimumRating:  defaultMinimumRating,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	metrics.UpdateRepositoryShardCount(s.shardCount)
	return s
}

func (s *MemStore) shardFor(teamID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(teamID))
	return s.shards[int(h.Sum32())%s.shardCount]
}

// EnsureTeam resolves a team's stats, seeding the starting rating on first
// contact.
func (s *MemStore) EnsureTeam(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error) {
	sh := s.shardFor(teamID)
	k := teamKey{bracket: bracket, teamID: teamID}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if stats, ok := sh.teams[k]; ok {
		return stats, nil
	}
	stats := model.TeamBracketStats{
		TeamID:        teamID,
		Bracket:       bracket,
		CurrentRating: s.startingRating,
		InitialRating: s.startingRating,
		HighestRating: s.startingRating,
		LastUpdated:   time.Now().UTC(),
	}
	sh.teams[k] = stats
	metrics.RecordTeamRegistered()
	return stats, nil
}

// TeamBracketStats resolves existing stats.
func (s *MemStore) TeamBracketStats(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error) {
	sh := s.shardFor(teamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	stats, ok := sh.teams[teamKey{bracket: bracket, teamID: teamID}]
	if !ok {
		return model.TeamBracketStats{}, fmt.Errorf("%w: %s in %s", ErrNotFound, teamID, bracket)
	}
	return stats, nil
}

// SaveTeamBracketStats overwrites a team's stats.
func (s *MemStore) SaveTeamBracketStats(ctx context.Context, stats model.TeamBracketStats) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.shardFor(stats.TeamID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.teams[teamKey{bracket: stats.Bracket, teamID: stats.TeamID}] = stats
	return nil
}

// AdjustTeamRating applies a signed delta atomically, clamped to the floor.
func (s *MemStore) AdjustTeamRating(ctx context.Context, teamID string, bracket model.Bracket, delta float64) error {
	sh := s.shardFor(teamID)
	k := teamKey{bracket: bracket, teamID: teamID}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	stats, ok := sh.teams[k]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrNotFound, teamID, bracket)
	}
	stats.CurrentRating = math.Max(s.minimumRating, stats.CurrentRating+delta)
	stats.HighestRating = math.Max(stats.HighestRating, stats.CurrentRating)
	stats.LastUpdated = time.Now().UTC()
	sh.teams[k] = stats
	return nil
}

// VarietyStats returns a team's variety stats, nil when never computed.
func (s *MemStore) VarietyStats(ctx context.Context, teamID string, bracket model.Bracket) (*model.VarietyStats, error) {
	sh := s.shardFor(teamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	vs, ok := sh.variety[teamKey{bracket: bracket, teamID: teamID}]
	if !ok {
		return nil, nil
	}
	cp := vs
	return &cp, nil
}

// SaveVarietyStats overwrites a team's variety stats.
func (s *MemStore) SaveVarietyStats(ctx context.Context, stats model.VarietyStats) error {
	sh := s.shardFor(stats.TeamID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.variety[teamKey{bracket: stats.Bracket, teamID: stats.TeamID}] = stats
	return nil
}

// RecordEncounter increments the match count against an opponent.
func (s *MemStore) RecordEncounter(ctx context.Context, teamID, opponentID string, bracket model.Bracket) error {
	sh := s.shardFor(teamID)
	k := teamKey{bracket: bracket, teamID: teamID}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.encounters[k] == nil {
		sh.encounters[k] = make(map[string]int)
	}
	sh.encounters[k][opponentID]++
	return nil
}

// OpponentEncounters returns a copy of a team's per-opponent match counts.
func (s *MemStore) OpponentEncounters(ctx context.Context, teamID string, bracket model.Bracket) (map[string]int, error) {
	sh := s.shardFor(teamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	src := sh.encounters[teamKey{bracket: bracket, teamID: teamID}]
	out := make(map[string]int, len(src))
	for id, n := range src {
		out[id] = n
	}
	return out, nil
}

// PopulationRatings lists every current rating in a bracket.
func (s *MemStore) PopulationRatings(ctx context.Context, bracket model.Bracket) ([]float64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var ratings []float64
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, stats := range sh.teams {
			if k.bracket == bracket {
				ratings = append(ratings, stats.CurrentRating)
			}
		}
		sh.mu.RUnlock()
	}
	return ratings, nil
}

// Averages returns population average entropy and games for a bracket.
func (s *MemStore) Averages(ctx context.Context, bracket model.Bracket) (BracketAverages, error) {
	var (
		entropySum float64
		entropyN   int
		gamesSum   int
		teamN      int
	)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, stats := range sh.teams {
			if k.bracket != bracket {
				continue
			}
			gamesSum += stats.GamesPlayed()
			teamN++
		}
		for k, vs := range sh.variety {
			if k.bracket == bracket {
				entropySum += vs.VarietyEntropy
				entropyN++
			}
		}
		sh.mu.RUnlock()
	}

	var out BracketAverages
	if entropyN > 0 {
		out.AverageEntropy = entropySum / float64(entropyN)
	}
	if teamN > 0 {
		out.AverageGames = float64(gamesSum) / float64(teamN)
	}
	return out, nil
}

// OpenProvenPotentialRecords lists incomplete records for a new team.
func (s *MemStore) OpenProvenPotentialRecords(ctx context.Context, teamID string, bracket model.Bracket) ([]*model.ProvenPotentialRecord, error) {
	sh := s.shardFor(teamID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	var out []*model.ProvenPotentialRecord
	for _, rec := range sh.records[teamKey{bracket: bracket, teamID: teamID}] {
		if !rec.IsComplete {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// SaveProvenPotentialRecord persists a new or mutated record, replacing by id.
func (s *MemStore) SaveProvenPotentialRecord(ctx context.Context, rec *model.ProvenPotentialRecord) error {
	sh := s.shardFor(rec.NewTeamID)
	k := teamKey{bracket: rec.Bracket, teamID: rec.NewTeamID}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	cp := rec.Clone()
	for i, existing := range sh.records[k] {
		if existing.ID == rec.ID {
			sh.records[k][i] = cp
			return nil
		}
	}
	sh.records[k] = append(sh.records[k], cp)
	metrics.RecordProvenPotentialOpened()
	return nil
}

// Leaderboard returns the top-n entries for a bracket, rating desc.
func (s *MemStore) Leaderboard(ctx context.Context, bracket model.Bracket, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	var entries []Entry
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, stats := range sh.teams {
			if k.bracket != bracket {
				continue
			}
			entries = append(entries, Entry{
				TeamID:     stats.TeamID,
				Rating:     stats.CurrentRating,
				Wins:       stats.Wins,
				Losses:     stats.Losses,
				Confidence: stats.Confidence,
			})
		}
		sh.mu.RUnlock()
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].TeamID < entries[j].TeamID
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Count returns the number of teams tracked in a bracket.
func (s *MemStore) Count(ctx context.Context, bracket model.Bracket) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.teams {
			if k.bracket == bracket {
				total++
			}
		}
		sh.mu.RUnlock()
	}
	return total
}
