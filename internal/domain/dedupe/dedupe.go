// Package dedupe provides idempotency tracking for submitted match ids.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen match IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing a retry. Use
	// only when a recorded match failed to enqueue (backpressure).
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of tracked ids.
	Size() int
}

// inMemoryDeduper implements Deduper with a map plus a FIFO ring so memory
// stays bounded: once maxSize ids are tracked, the oldest is evicted.
// maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	head    int
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration
// options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		// Evict the oldest still-tracked id.
		for d.head < len(d.order) {
			victim := d.order[d.head]
			d.head++
			if _, ok := d.seen[victim]; ok {
				delete(d.seen, victim)
				break
			}
		}
		// Compact once the dead prefix dominates.
		if d.head > len(d.order)/2 {
			d.order = append(d.order[:0], d.order[d.head:]...)
			d.head = 0
		}
	}

	d.seen[id] = struct{}{}
	if d.maxSize > 0 {
		d.order = append(d.order, id)
	}
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
