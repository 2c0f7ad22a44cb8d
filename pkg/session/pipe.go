package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chainsafe/canton-token-flows/pkg/party"
)

const pipeBuffer = 16

type pipe struct {
	id   string
	once sync.Once
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *pipe) close(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *pipe) closedErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, p.err)
	}
	return ErrClosed
}

// PipeEnd is one end of an in-process session
type PipeEnd struct {
	p            *pipe
	counterparty party.Party
	in           chan Message
	out          chan Message
}

// NewPipe connects a and b in process. The first end is held by a and talks to b.
func NewPipe(a, b party.Party) (*PipeEnd, *PipeEnd) {
	p := &pipe{id: uuid.NewString(), done: make(chan struct{})}
	ab := make(chan Message, pipeBuffer)
	ba := make(chan Message, pipeBuffer)
	return &PipeEnd{p: p, counterparty: b, in: ba, out: ab},
		&PipeEnd{p: p, counterparty: a, in: ab, out: ba}
}

func (e *PipeEnd) ID() string {
	return e.p.id
}

func (e *PipeEnd) Counterparty() party.Party {
	return e.counterparty
}

func (e *PipeEnd) Send(ctx context.Context, msg Message) error {
	select {
	case <-e.p.done:
		return e.p.closedErr()
	default:
	}
	select {
	case e.out <- msg:
		return nil
	case <-e.p.done:
		return e.p.closedErr()
	case <-ctx.Done():
		return ctxError(ctx)
	}
}

// Receive returns messages already delivered before reporting a closed pipe
func (e *PipeEnd) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-e.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-e.in:
		return msg, nil
	case <-e.p.done:
		select {
		case msg := <-e.in:
			return msg, nil
		default:
		}
		return Message{}, e.p.closedErr()
	case <-ctx.Done():
		return Message{}, ctxError(ctx)
	}
}

func (e *PipeEnd) Close() error {
	e.p.close(nil)
	return nil
}

// CloseWithError closes the pipe so the other end observes err
func (e *PipeEnd) CloseWithError(err error) {
	e.p.close(err)
}
