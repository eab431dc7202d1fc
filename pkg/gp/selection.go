package gp

import (
	"math"
	"math/rand"
	"sort"
)

// nonDominatedSort partitions evaluated individuals into Pareto fronts.
// Front 0 contains the individuals dominated by nobody; each later
// front is computed after removing the earlier ones.
func nonDominatedSort(individuals []*Individual) [][]*Individual {
	if len(individuals) == 0 {
		return nil
	}

	fronts := make([][]*Individual, 0)
	remaining := make([]*Individual, len(individuals))
	copy(remaining, individuals)

	for len(remaining) > 0 {
		var front, rest []*Individual
		for i, cand := range remaining {
			dominated := false
			for j, other := range remaining {
				if i == j {
					continue
				}
				if other.Fitness.Dominates(*cand.Fitness) {
					dominated = true
					break
				}
			}
			if dominated {
				rest = append(rest, cand)
			} else {
				front = append(front, cand)
			}
		}
		if len(front) == 0 {
			// All remaining dominate each other pairwise is impossible;
			// guard against fitness NaNs by flushing the rest as one front.
			front = rest
			rest = nil
		}
		fronts = append(fronts, front)
		remaining = rest
	}

	return fronts
}

// crowdingDistance assigns the NSGA-II diversity measure within one
// front: boundary individuals get +Inf, interior ones the normalized
// side lengths of the cuboid spanned by their neighbors.
func crowdingDistance(front []*Individual) map[*Individual]float64 {
	dist := make(map[*Individual]float64, len(front))
	for _, ind := range front {
		dist[ind] = 0
	}
	if len(front) <= 2 {
		for _, ind := range front {
			dist[ind] = math.Inf(1)
		}
		return dist
	}

	objectives := []func(*Individual) float64{
		func(ind *Individual) float64 { return -ind.Fitness.Complexity }, // minimized
		func(ind *Individual) float64 { return ind.Fitness.Quality },
	}

	sorted := make([]*Individual, len(front))
	copy(sorted, front)
	for _, obj := range objectives {
		sort.SliceStable(sorted, func(i, j int) bool {
			return obj(sorted[i]) < obj(sorted[j])
		})
		lo, hi := obj(sorted[0]), obj(sorted[len(sorted)-1])
		span := hi - lo
		dist[sorted[0]] = math.Inf(1)
		dist[sorted[len(sorted)-1]] = math.Inf(1)
		if span == 0 || math.IsInf(span, 0) || math.IsNaN(span) {
			continue
		}
		for i := 1; i < len(sorted)-1; i++ {
			dist[sorted[i]] += (obj(sorted[i+1]) - obj(sorted[i-1])) / span
		}
	}
	return dist
}

// SelectNSGA2 chooses k survivors by Pareto rank with crowding-distance
// tie-breaks inside the front that straddles the cutoff.
func SelectNSGA2(individuals []*Individual, k int) []*Individual {
	if k >= len(individuals) {
		out := make([]*Individual, len(individuals))
		copy(out, individuals)
		return out
	}

	selected := make([]*Individual, 0, k)
	for _, front := range nonDominatedSort(individuals) {
		if len(selected)+len(front) <= k {
			selected = append(selected, front...)
			continue
		}
		dist := crowdingDistance(front)
		sorted := make([]*Individual, len(front))
		copy(sorted, front)
		sort.SliceStable(sorted, func(i, j int) bool {
			return dist[sorted[i]] > dist[sorted[j]]
		})
		selected = append(selected, sorted[:k-len(selected)]...)
		break
	}
	return selected
}

// TournamentSelect picks one parent by binary dominance tournament:
// the dominating contender wins, otherwise the one in the sparser
// objective-space region (higher crowding distance over the whole
// pool), otherwise a coin flip.
func TournamentSelect(rng *rand.Rand, pool []*Individual, dist map[*Individual]float64) *Individual {
	a := pool[rng.Intn(len(pool))]
	b := pool[rng.Intn(len(pool))]
	if a.Fitness.Dominates(*b.Fitness) {
		return a
	}
	if b.Fitness.Dominates(*a.Fitness) {
		return b
	}
	if dist != nil && dist[a] != dist[b] {
		if dist[a] > dist[b] {
			return a
		}
		return b
	}
	if rng.Intn(2) == 0 {
		return a
	}
	return b
}

// PoolCrowding computes crowding distances per front across an entire
// pool, for use by TournamentSelect.
func PoolCrowding(pool []*Individual) map[*Individual]float64 {
	dist := make(map[*Individual]float64, len(pool))
	for _, front := range nonDominatedSort(pool) {
		for ind, d := range crowdingDistance(front) {
			dist[ind] = d
		}
	}
	return dist
}
