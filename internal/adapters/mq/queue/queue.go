// Package queue defines the contract for enqueuing and consuming completed
// match results.
//
// Implementations may use channels or more advanced structures; the default
// is an in-memory bounded queue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 100000
)

// Match is the payload type flowing through the queue.
type Match = model.MatchResult

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a match to the queue.
	// Returns false if the queue is full and the match was not enqueued.
	Enqueue(ctx context.Context, m Match) bool

	// Dequeue returns a channel that receives matches as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Match

	// Len returns the current number of queued matches.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. After closing, no new
	// matches can be enqueued and the dequeue channel is closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	matches  chan Match
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.matches = make(chan Match, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a match to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Match) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}

	select {
	case q.matches <- m:
		metrics.UpdateQueueSize(len(q.matches))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return false
	}
}

// Dequeue returns a channel that receives matches until the queue closes.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Match {
	out := make(chan Match)
	go func() {
		defer close(out)
		for m := range q.matches {
			select {
			case out <- m:
				metrics.UpdateQueueSize(len(q.matches))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued matches.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.matches)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.matches)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
