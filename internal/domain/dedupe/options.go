package dedupe

// defaultMaxSize bounds the tracked id set.
const defaultMaxSize = 50000

// Option applies a configuration option to the deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of IDs to keep before eviction.
// Zero or negative disables eviction.
func WithMaxSize(size int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = size
	}
}
