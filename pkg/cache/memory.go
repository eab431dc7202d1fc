package cache

import (
	"context"
	"sync"

	"github.com/evopipe/evopipe/pkg/gp"
)

// MemoryStore is an in-process Store backed by a map. Entries are
// append-only for the lifetime of a search.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]gp.Fitness
	c       counters
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]gp.Fitness)}
}

func (m *MemoryStore) Lookup(_ context.Context, key string) (gp.Fitness, bool, error) {
	m.mu.RLock()
	fit, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		m.c.hits.Add(1)
	} else {
		m.c.misses.Add(1)
	}
	return fit, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, fit gp.Fitness) error {
	m.mu.Lock()
	if _, exists := m.entries[key]; !exists {
		m.entries[key] = fit
		m.c.puts.Add(1)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Snapshot() map[string]gp.Fitness {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]gp.Fitness, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Seed loads entries in bulk, used when resuming a previous search.
// Existing keys win over seeded ones.
func (m *MemoryStore) Seed(entries map[string]gp.Fitness) {
	m.mu.Lock()
	for k, v := range entries {
		if _, exists := m.entries[k]; !exists {
			m.entries[k] = v
		}
	}
	m.mu.Unlock()
}

func (m *MemoryStore) Stats() Stats { return m.c.stats() }

func (m *MemoryStore) Close() error { return nil }
