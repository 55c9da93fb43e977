// Package service provides the core business service that implements
// the dependencies required by the HTTP API: match intake, the rating
// pipeline, and ladder queries.
package service

import (
	"context"
	"runtime"
	"sync"

	matchqueue "github.com/okian/ladder/internal/adapters/mq/queue"
	workerpool "github.com/okian/ladder/internal/adapters/mq/worker"
	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/potential"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Service implements the API dependencies for the ladder system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	matchQueue matchqueue.Queue
	calculator *rating.Calculator
	tracker    *potential.Tracker
	workerPool *workerpool.Pool
	locks      *teamLocks

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	shardCount   int
	ratingCfg    rating.Config
	potentialCfg potential.Config

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the match queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the in-memory store's shard count.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithRatingConfig replaces the default rating engine tuning.
func WithRatingConfig(cfg rating.Config) Option {
	return func(s *Service) {
		s.ratingCfg = cfg
	}
}

// WithPotentialConfig replaces the default proven-potential tuning.
func WithPotentialConfig(cfg potential.Config) Option {
	return func(s *Service) {
		s.potentialCfg = cfg
	}
}

// WithStore injects a pre-built store (e.g. Postgres). When unset, Start
// builds an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU() * 2,
		queueSize:    100000,
		dedupeSize:   50000,
		shardCount:   8,
		ratingCfg:    rating.DefaultConfig(),
		potentialCfg: potential.DefaultConfig(),
		stopCh:       make(chan struct{}),
		locks:        newTeamLocks(),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting ladder service...")

	if s.store == nil {
		s.store = repository.NewMemStore(ctx,
			repository.WithShardCount(s.shardCount),
			repository.WithStartingRating(s.ratingCfg.StartingRating),
			repository.WithMinimumRating(s.ratingCfg.MinimumRating),
		)
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.matchQueue = matchqueue.NewInMemoryQueue(
		matchqueue.WithCapacity(s.queueSize),
	)
	s.calculator = rating.New(rating.WithConfig(s.ratingCfg))
	s.tracker = potential.New(s.store,
		potential.WithConfig(s.potentialCfg),
		potential.WithLogger(s.logger.Named("potential")),
	)

	// The service itself is the match processor; workers call back into
	// ProcessMatch.
	s.workerPool = workerpool.NewPool(s.workerCount, s.matchQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ladder service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping ladder service...")

	if s.matchQueue != nil {
		_ = s.matchQueue.Close()
	}
	if s.workerPool != nil {
		s.workerPool.Stop(ctx)
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "ladder service stopped")
}

// SubmitResult validates and enqueues a completed match for asynchronous
// rating. Duplicate submissions are accepted and dropped silently; a full
// queue surfaces ErrQueueFull and releases the dedupe claim so the client
// can retry.
func (s *Service) SubmitResult(ctx context.Context, m model.MatchResult) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	if err := validateMatch(m); err != nil {
		return err
	}

	if s.deduper.SeenAndRecord(ctx, m.MatchID) {
		metrics.RecordMatchDuplicate()
		s.logger.Debug(ctx, "duplicate match dropped",
			logger.String("matchID", m.MatchID),
		)
		return nil
	}

	if !s.matchQueue.Enqueue(ctx, m) {
		s.deduper.Unrecord(ctx, m.MatchID)
		return ErrQueueFull
	}
	metrics.UpdateQueueSize(s.matchQueue.Len(ctx))
	return nil
}

// Leaderboard returns the top n teams in a bracket, rating descending.
func (s *Service) Leaderboard(ctx context.Context, bracket model.Bracket, n int) ([]repository.Entry, error) {
	return s.store.Leaderboard(ctx, bracket, n)
}

// Team returns a team's stats in a bracket.
func (s *Service) Team(ctx context.Context, teamID string, bracket model.Bracket) (model.TeamBracketStats, error) {
	return s.store.TeamBracketStats(ctx, teamID, bracket)
}

// Variety returns a team's variety stats, nil when the team has no
// encounter history.
func (s *Service) Variety(ctx context.Context, teamID string, bracket model.Bracket) (*model.VarietyStats, error) {
	return s.store.VarietyStats(ctx, teamID, bracket)
}

// OpenPotentialCount returns how many proven-potential records are still
// tracking a team's climb in a bracket.
func (s *Service) OpenPotentialCount(ctx context.Context, teamID string, bracket model.Bracket) (int, error) {
	records, err := s.store.OpenProvenPotentialRecords(ctx, teamID, bracket)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.matchQueue.Len(ctx)
		totalTeams := 0
		for _, b := range []model.Bracket{model.BracketSolo, model.BracketDuo, model.BracketTrio, model.BracketQuad} {
			totalTeams += s.store.Count(ctx, b)
		}

		stats["queueLength"] = queueLen
		stats["totalTeams"] = totalTeams

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalTeams(totalTeams)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
