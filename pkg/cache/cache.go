// Package cache stores pipeline evaluation results keyed by the
// pipeline's canonical string, so a pipeline rediscovered in a later
// generation is never re-scored.
package cache

import (
	"context"
	"sync/atomic"

	"github.com/evopipe/evopipe/pkg/gp"
)

// Store is the evaluation cache contract. Implementations must be safe
// for concurrent use; Put is first-write-wins, a key already present is
// left untouched.
type Store interface {
	// Lookup returns the cached fitness for a canonical pipeline
	// string, with ok=false on a miss.
	Lookup(ctx context.Context, key string) (gp.Fitness, bool, error)

	// Put records a fitness under the key if no entry exists yet.
	Put(ctx context.Context, key string, fit gp.Fitness) error

	// Len returns the number of cached entries.
	Len() int

	// Snapshot copies the full contents, for warm starts and reports.
	Snapshot() map[string]gp.Fitness

	// Stats returns hit/miss counters.
	Stats() Stats

	// Close releases any resources held by the store.
	Close() error
}

// Stats holds cache access counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Puts   int64 `json:"puts"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	puts   atomic.Int64
}

func (c *counters) stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Puts:   c.puts.Load(),
	}
}
