package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidMatch = errors.New("invalid match result")
	ErrQueueFull    = errors.New("match queue full")
	ErrNotStarted   = errors.New("service not started")
)
