package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps records in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]string)}
}

// Merge implements Store.
func (m *MemoryStore) Merge(ctx context.Context, id string, record map[string]string) error {
	if id == "" {
		return fmt.Errorf("Merge: %w", ErrEmptyID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		stored = make(map[string]string, len(record))
		m.records[id] = stored
	}
	for k, v := range record {
		stored[k] = v
	}
	return nil
}

// Get implements Store. The returned map is a copy.
func (m *MemoryStore) Get(ctx context.Context, id string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]string, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

// Len reports the number of stored ids.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error { return nil }
