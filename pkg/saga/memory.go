package saga

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Create(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[s.ID]; ok {
		return fmt.Errorf("saga %s already exists", s.ID)
	}
	m.states[s.ID] = *s
	return nil
}

func (m *MemoryStore) Update(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[s.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	m.states[s.ID] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &s, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*State
	for _, s := range m.states {
		if !s.Step.Terminal() {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
