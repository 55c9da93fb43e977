package service

import (
	"sort"
	"sync"
)

// teamLocks serializes rating pipelines per team so two concurrent matches
// sharing a team cannot interleave their read-compute-write sequences. Locks
// are striped by team id hash; stripes are acquired in index order so a match
// can never deadlock against another.
type teamLocks struct {
	stripes []sync.Mutex
}

const lockStripes = 256

func newTeamLocks() *teamLocks {
	return &teamLocks{stripes: make([]sync.Mutex, lockStripes)}
}

func (l *teamLocks) stripe(teamID string) int {
	h := uint32(2166136261)
	for i := 0; i < len(teamID); i++ {
		h ^= uint32(teamID[i])
		h *= 16777619
	}
	return int(h % uint32(len(l.stripes)))
}

// lockPair locks the stripes covering both teams and returns the unlock
// function. A single stripe is locked once when both teams hash to it.
func (l *teamLocks) lockPair(teamA, teamB string) func() {
	a, b := l.stripe(teamA), l.stripe(teamB)
	if a > b {
		a, b = b, a
	}
	l.stripes[a].Lock()
	if b != a {
		l.stripes[b].Lock()
	}
	return func() {
		if b != a {
			l.stripes[b].Unlock()
		}
		l.stripes[a].Unlock()
	}
}

// lockMany locks the stripes covering every listed team in index order.
func (l *teamLocks) lockMany(teamIDs ...string) func() {
	seen := make(map[int]struct{}, len(teamIDs))
	idx := make([]int, 0, len(teamIDs))
	for _, id := range teamIDs {
		s := l.stripe(id)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		idx = append(idx, s)
	}
	sort.Ints(idx)
	for _, s := range idx {
		l.stripes[s].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			l.stripes[idx[i]].Unlock()
		}
	}
}
