package repository

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithShardCount sets the number of shards in the store.
func WithShardCount(count int) Option {
	return func(s *MemStore) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithStartingRating sets the rating seeded for first-contact teams.
func WithStartingRating(rating float64) Option {
	return func(s *MemStore) {
		if rating > 0 {
			s.startingRating = rating
		}
	}
}

// WithMinimumRating sets the rating floor enforced on adjustments.
func WithMinimumRating(rating float64) Option {
	return func(s *MemStore) {
		if rating > 0 {
			s.minimumRating = rating
		}
	}
}
