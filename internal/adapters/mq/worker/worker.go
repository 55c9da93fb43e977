// Package worker consumes completed matches from a queue and drives the
// rating pipeline for each one.
package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/okian/ladder/internal/adapters/mq/queue"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// MatchProcessor applies a completed match to the ladder: rating changes,
// stat updates, variety maintenance and proven-potential bookkeeping.
type MatchProcessor interface {
	ProcessMatch(ctx context.Context, m model.MatchResult) error
}

// Worker consumes matches from the queue and hands them to the processor.
type Worker interface {
	// Run starts consuming from the queue. Blocks until the context is
	// cancelled or the queue closes.
	Run(ctx context.Context) error

	// Shutdown signals the worker to stop after the in-flight match.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over an in-process queue.
type InMemoryWorker struct {
	queue     queue.Queue
	processor MatchProcessor
	name      string
	log       logger.Logger

	mu      sync.Mutex
	stopped bool
}

// NewInMemoryWorker creates a worker bound to the given queue and processor.
func NewInMemoryWorker(q queue.Queue, p MatchProcessor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Get().Named(w.name)
	}
	return w
}

// Run consumes matches until the context is cancelled or the queue closes.
func (w *InMemoryWorker) Run(ctx context.Context) error {
	w.log.Info(ctx, "worker started")
	matches := w.queue.Dequeue(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info(ctx, "worker stopping", logger.Error(ctx.Err()))
			return ctx.Err()
		case m, ok := <-matches:
			if !ok {
				w.log.Info(ctx, "queue closed, worker exiting")
				return nil
			}
			if w.isStopped() {
				return nil
			}
			w.processMatch(ctx, m)
		}
	}
}

// Shutdown signals the worker to stop after the current match.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	return nil
}

func (w *InMemoryWorker) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

func (w *InMemoryWorker) processMatch(ctx context.Context, m model.MatchResult) {
	start := time.Now()

	if err := w.processor.ProcessMatch(ctx, m); err != nil {
		metrics.RecordMatchProcessed(string(m.Bracket), "error")
		w.log.Error(ctx, "failed to process match",
			logger.String("match_id", m.MatchID),
			logger.String("bracket", string(m.Bracket)),
			logger.Error(err))
		return
	}

	metrics.RecordMatchProcessed(string(m.Bracket), "ok")
	metrics.RecordMatchProcessingLatency(time.Since(start).Seconds())
}

// Pool runs a fixed number of workers over a shared queue.
type Pool struct {
	workers []*InMemoryWorker
	wg      sync.WaitGroup
}

// NewPool creates size workers sharing the queue and processor.
func NewPool(size int, q queue.Queue, p MatchProcessor) *Pool {
	if size <= 0 {
		size = 1
	}
	pool := &Pool{workers: make([]*InMemoryWorker, 0, size)}
	for i := 0; i < size; i++ {
		pool.workers = append(pool.workers,
			NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i))))
	}
	return pool
}

// Start launches all workers. Non-blocking.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerCount(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			_ = w.Run(ctx)
		}(w)
	}
}

// Stop signals all workers to stop and waits for them to exit.
func (p *Pool) Stop(ctx context.Context) {
	for _, w := range p.workers {
		_ = w.Shutdown(ctx)
	}
	p.wg.Wait()
	metrics.UpdateWorkerCount(0)
}
