package rules

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process LastResponseStore. Used in tests and in
// deployments that run without Redis; records do not survive restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time)}
}

// LastResponseAt implements LastResponseStore.
func (s *MemoryStore) LastResponseAt(_ context.Context, recipient string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.seen[NormalizeRecipient(recipient)]
	return t, ok, nil
}

// RecordResponse implements LastResponseStore.
func (s *MemoryStore) RecordResponse(_ context.Context, recipient string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[NormalizeRecipient(recipient)] = at
	return nil
}
