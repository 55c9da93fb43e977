package worker

import "github.com/okian/ladder/pkg/logger"

// Option applies a configuration option to the worker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the logger used by the worker.
func WithLogger(log logger.Logger) Option {
	return func(w *InMemoryWorker) {
		w.log = log
	}
}
