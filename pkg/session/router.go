package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler is the responder side of a flow. It owns the session until it returns.
type Handler func(ctx context.Context, sess Session) error

// Router maps flow names to the responders this node runs when a counterparty
// initiates them.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates an empty Router
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Handle registers h as the responder for flow, replacing any previous one
func (r *Router) Handle(flow string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[flow] = h
}

// Lookup returns the responder registered for flow
func (r *Router) Lookup(flow string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	return h, nil
}

// Flows returns the registered flow names in sorted order
func (r *Router) Flows() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flows := make([]string, 0, len(r.handlers))
	for f := range r.handlers {
		flows = append(flows, f)
	}
	sort.Strings(flows)
	return flows
}
