package model

import (
	"sort"
	"time"
)

// ProvenPotentialRecord tracks a match between a low-confidence ("new") team
// and a fully-confident ("established") team so the established side can be
// retroactively compensated once the new team's later results prove the
// original rating gap was wrong.
//
// Applied compensation thresholds are stored as integer step counts
// (multiples of the configured step fraction) rather than raw floats, so
// idempotency never depends on floating-point equality.
type ProvenPotentialRecord struct {
	ID              string
	OriginalMatchID string
	Bracket         Bracket

	NewTeamID         string
	EstablishedTeamID string

	// Snapshots taken at record creation.
	NewTeamRating             float64
	EstablishedTeamRating     float64
	NewTeamConfidence         float64
	EstablishedTeamConfidence float64
	NewTeamOriginalChange     float64 // signed
	EstablishedOriginalChange float64 // signed

	AppliedSteps                map[int]bool
	RatingAdjustment            float64 // accumulated, signed
	NewTeamMatchCountAtCreation int
	TrackingEndMatchID          string // empty until the tracking window closes
	IsComplete                  bool

	CreatedAt     time.Time
	LastCheckedAt time.Time
}

// StepApplied reports whether a compensation step was already paid out.
func (r *ProvenPotentialRecord) StepApplied(step int) bool {
	return r.AppliedSteps[step]
}

// MarkStepApplied records a compensation step so it is never re-applied.
func (r *ProvenPotentialRecord) MarkStepApplied(step int) {
	if r.AppliedSteps == nil {
		r.AppliedSteps = make(map[int]bool)
	}
	r.AppliedSteps[step] = true
}

// AppliedStepList returns the applied steps in ascending order.
func (r *ProvenPotentialRecord) AppliedStepList() []int {
	steps := make([]int, 0, len(r.AppliedSteps))
	for s := range r.AppliedSteps {
		steps = append(steps, s)
	}
	sort.Ints(steps)
	return steps
}

// Clone returns a deep copy so stores can hand out records without sharing
// the applied-step set.
func (r *ProvenPotentialRecord) Clone() *ProvenPotentialRecord {
	cp := *r
	cp.AppliedSteps = make(map[int]bool, len(r.AppliedSteps))
	for s, v := range r.AppliedSteps {
		cp.AppliedSteps[s] = v
	}
	return &cp
}
