package gp

import (
	"sync"
)

// ParetoArchive is the hall of fame: the set of individuals that no
// individual evaluated so far dominates. It only grows or updates
// across generations; members are evicted solely when a newcomer
// dominates them. Two individuals with the same canonical string are
// treated as one.
type ParetoArchive struct {
	mu      sync.RWMutex
	members []*Individual
	keys    map[string]struct{}
}

// NewParetoArchive returns an empty archive.
func NewParetoArchive() *ParetoArchive {
	return &ParetoArchive{keys: make(map[string]struct{})}
}

// Update offers a batch of evaluated individuals to the archive.
// Failed evaluations never enter it.
func (a *ParetoArchive) Update(individuals []*Individual) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, cand := range individuals {
		if cand.Fitness == nil || cand.Fitness.Failed() {
			continue
		}
		key := cand.String()
		if _, dup := a.keys[key]; dup {
			continue
		}

		dominated := false
		for _, m := range a.members {
			if m.Fitness.Dominates(*cand.Fitness) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}

		// Evict members the newcomer dominates.
		kept := a.members[:0]
		for _, m := range a.members {
			if cand.Fitness.Dominates(*m.Fitness) {
				delete(a.keys, m.String())
				continue
			}
			kept = append(kept, m)
		}
		a.members = append(kept, cand)
		a.keys[key] = struct{}{}
	}
}

// Members returns a copy of the current archive contents.
func (a *ParetoArchive) Members() []*Individual {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Individual, len(a.members))
	copy(out, a.members)
	return out
}

// Best returns the member with the highest quality, ties broken by
// lower complexity, or nil when the archive is empty.
func (a *ParetoArchive) Best() *Individual {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var best *Individual
	for _, m := range a.members {
		if best == nil || m.Fitness.Better(*best.Fitness) {
			best = m
		}
	}
	return best
}

// Len returns the number of archived individuals.
func (a *ParetoArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.members)
}
