package distribution

import (
	"context"
	"sync"

	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/token"
)

type typeList struct {
	mu      sync.Mutex
	holders map[string]struct{}
	order   []party.Party
}

// MemoryRegistry is an in-memory Registry. Inserts are serialised per token type.
type MemoryRegistry struct {
	mu    sync.Mutex
	types map[string]*typeList
}

// NewMemoryRegistry creates an empty MemoryRegistry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{types: make(map[string]*typeList)}
}

func (m *MemoryRegistry) list(tokenTypeID string) *typeList {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.types[tokenTypeID]
	if !ok {
		l = &typeList{holders: make(map[string]struct{})}
		m.types[tokenTypeID] = l
	}
	return l
}

func (m *MemoryRegistry) insert(records []token.Record) int {
	inserted := 0
	for _, rc := range recipients(records) {
		l := m.list(rc.TokenTypeID)
		l.mu.Lock()
		if _, ok := l.holders[rc.Holder.ID]; !ok {
			l.holders[rc.Holder.ID] = struct{}{}
			l.order = append(l.order, rc.Holder)
			inserted++
		}
		l.mu.Unlock()
	}
	return inserted
}

// AddRecipients adds the holders of records not yet listed
func (m *MemoryRegistry) AddRecipients(_ context.Context, records []token.Record) (int, error) {
	return m.insert(records), nil
}

// UpdateRecipients behaves like AddRecipients; entries are never removed
func (m *MemoryRegistry) UpdateRecipients(_ context.Context, records []token.Record) (int, error) {
	return m.insert(records), nil
}

// ListRecipients returns the holders of tokenTypeID in insertion order
func (m *MemoryRegistry) ListRecipients(_ context.Context, tokenTypeID string) ([]party.Party, error) {
	l := m.list(tokenTypeID)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]party.Party, len(l.order))
	copy(out, l.order)
	return out, nil
}
