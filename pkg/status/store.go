package status

import (
	"context"
	"sync"
)

// Store persists the latest status record.
type Store interface {
	// Get returns the stored record and whether one exists.
	Get(ctx context.Context) (Status, bool, error)

	// Put replaces the stored record.
	Put(ctx context.Context, s Status) error

	// Close releases backend resources.
	Close() error
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	cur *Status
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(context.Context) (Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return Status{}, false, nil
	}
	return clone(*m.cur), true, nil
}

func (m *MemoryStore) Put(_ context.Context, s Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s = clone(s)
	m.cur = &s
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// clone copies the timestamp so callers cannot mutate stored state.
func clone(s Status) Status {
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		s.LastUpdated = &t
	}
	return s
}

var _ Store = (*MemoryStore)(nil)
