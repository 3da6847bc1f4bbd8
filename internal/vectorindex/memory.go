package vectorindex

import (
	"context"
	"sync"

	"docqa/internal/models"
)

// MemoryStore keeps snapshots in process memory. Useful for dry runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, location string, idx *Index) error {
	snap := idx.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[location] = snap
	return nil
}

func (s *MemoryStore) Load(_ context.Context, location string) (*Index, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[location]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrNoIndex
	}
	return FromSnapshot(snap)
}
