package party

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownParty is returned when an id or anonymous key has no registered identity
	ErrUnknownParty = errors.New("unknown party")
	// ErrConflictingOwner is returned when an anonymous party is re-registered to another owner
	ErrConflictingOwner = errors.New("anonymous party registered to a different owner")
)

// Registry is the node's identity service. It stores well-known parties and the
// one-way links from anonymous parties to the well-known parties that own them.
type Registry interface {
	RegisterWellKnown(ctx context.Context, p Party) error
	RegisterAnonymous(ctx context.Context, anonymous, owner Party) error
	Lookup(ctx context.Context, id string) (Party, error)
	// WellKnown returns p itself when p is well-known and the owner when p is a
	// known anonymous party.
	WellKnown(ctx context.Context, p Party) (Party, error)
}

// Directory is an in-memory Registry
type Directory struct {
	mu      sync.RWMutex
	parties map[string]Party
	owners  map[string]string
}

// NewDirectory creates a Directory seeded with known well-known parties
func NewDirectory(known ...Party) *Directory {
	d := &Directory{
		parties: make(map[string]Party),
		owners:  make(map[string]string),
	}
	for _, p := range known {
		d.parties[p.ID] = p
	}
	return d
}

func (d *Directory) RegisterWellKnown(_ context.Context, p Party) error {
	if p.Anonymous {
		return fmt.Errorf("register well-known %s: party is anonymous", p.ID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parties[p.ID] = p
	return nil
}

func (d *Directory) RegisterAnonymous(_ context.Context, anonymous, owner Party) error {
	if !anonymous.Anonymous || owner.Anonymous {
		return fmt.Errorf("register anonymous %s: expected anonymous party owned by well-known party", anonymous.ID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.owners[anonymous.ID]; ok && existing != owner.ID {
		return ErrConflictingOwner
	}
	if _, ok := d.parties[owner.ID]; !ok {
		d.parties[owner.ID] = owner
	}
	d.parties[anonymous.ID] = anonymous
	d.owners[anonymous.ID] = owner.ID
	return nil
}

func (d *Directory) Lookup(_ context.Context, id string) (Party, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.parties[id]
	if !ok {
		return Party{}, fmt.Errorf("%w: %s", ErrUnknownParty, id)
	}
	return p, nil
}

func (d *Directory) WellKnown(_ context.Context, p Party) (Party, error) {
	if !p.Anonymous {
		return p, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	ownerID, ok := d.owners[p.ID]
	if !ok {
		return Party{}, fmt.Errorf("%w: %s", ErrUnknownParty, p.ID)
	}
	return d.parties[ownerID], nil
}
