package simulate

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// Runner configuration constants.
const (
	ProcessingDelay      = 10 * time.Second
	PercentageMultiplier = 100
)
