package rating

import "errors"

// Sentinel kinds for rating errors.
var (
	ErrInvalidRating = errors.New("invalid rating input")
)
