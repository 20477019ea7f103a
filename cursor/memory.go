package cursor

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-run tooling.
// Values do not survive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]uint64
}

// NewMemoryStore creates an empty in-memory cursor store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cursors: make(map[string]uint64),
	}
}

// Load returns the stored cursor for key, or def when absent
func (s *MemoryStore) Load(ctx context.Context, key string, def uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.cursors[key]; ok {
		return v
	}
	return def
}

// Save persists the cursor
func (s *MemoryStore) Save(ctx context.Context, key string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[key] = value
	return nil
}

// Reset overwrites the cursor
func (s *MemoryStore) Reset(ctx context.Context, key string, value uint64) error {
	return s.Save(ctx, key, value)
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
