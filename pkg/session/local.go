package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

// LocalNetwork connects nodes living in one process. Responders run in their own
// goroutine, as they would on a remote node.
type LocalNetwork struct {
	mu      sync.RWMutex
	routers map[string]*Router
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewLocalNetwork creates an empty in-process network
func NewLocalNetwork(logger *zap.Logger) *LocalNetwork {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalNetwork{routers: make(map[string]*Router), logger: logger}
}

// Join makes p reachable, answering initiated flows through router
func (n *LocalNetwork) Join(p party.Party, router *Router) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routers[p.ID] = router
}

// Initiator returns the Initiator used by self to open sessions
func (n *LocalNetwork) Initiator(self party.Party) Initiator {
	return &localInitiator{network: n, self: self}
}

// Wait blocks until every responder started on the network has returned
func (n *LocalNetwork) Wait() {
	n.wg.Wait()
}

type localInitiator struct {
	network *LocalNetwork
	self    party.Party
}

func (i *localInitiator) InitiateFlow(ctx context.Context, flow string, counterparty party.Party) (Session, error) {
	n := i.network
	n.mu.RLock()
	router, ok := n.routers[counterparty.ID]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, counterparty)
	}
	handler, err := router.Lookup(flow)
	if err != nil {
		return nil, err
	}

	initiatorEnd, responderEnd := NewPipe(i.self, counterparty)
	metrics.SessionsOpened.WithLabelValues("initiated", flow).Inc()
	metrics.SessionsOpened.WithLabelValues("accepted", flow).Inc()

	respCtx := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		err := handler(respCtx, Guard(responderEnd))
		if err != nil {
			metrics.ResponderFailures.WithLabelValues(flow).Inc()
			n.logger.Warn("responder failed",
				zap.String("flow", flow),
				zap.String("session_id", responderEnd.ID()),
				zap.String("initiator", i.self.ID),
				zap.Error(err))
			responderEnd.CloseWithError(remoteError(err))
			return
		}
		responderEnd.Close()
	}()

	return Guard(initiatorEnd), nil
}
