package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chainsafe/canton-token-flows/pkg/party"
)

const (
	errorDomain          = "tokenflows.session"
	reasonResponderError = "RESPONDER_FAILED"
	stageMetadataKey     = "stage"
	streamBuffer         = 16
)

// frameStream is the part of a gRPC bidi stream a session needs, on either side
type frameStream interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*wrapperspb.BytesValue, error)
}

// streamSession adapts a gRPC stream to Session. A reader goroutine pumps frames
// into a channel so Receive can honour its context.
type streamSession struct {
	id             string
	counterparty   party.Party
	stream         frameStream
	receiveTimeout time.Duration
	closeFn        func()

	sendMu sync.Mutex
	in     chan Message
	err    error

	closeOnce sync.Once
	done      chan struct{}
}

func newStreamSession(id string, counterparty party.Party, stream frameStream, receiveTimeout time.Duration, closeFn func()) *streamSession {
	s := &streamSession{
		id:             id,
		counterparty:   counterparty,
		stream:         stream,
		receiveTimeout: receiveTimeout,
		closeFn:        closeFn,
		in:             make(chan Message, streamBuffer),
		done:           make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *streamSession) readLoop() {
	defer close(s.in)
	for {
		frame, err := s.stream.Recv()
		if err != nil {
			s.err = streamError(err)
			return
		}
		var msg Message
		if err := json.Unmarshal(frame.GetValue(), &msg); err != nil {
			s.err = fmt.Errorf("%w: malformed frame: %w", ErrUnexpectedMessage, err)
			return
		}
		select {
		case s.in <- msg:
		case <-s.done:
			s.err = ErrClosed
			return
		}
	}
}

func (s *streamSession) ID() string {
	return s.id
}

func (s *streamSession) Counterparty() party.Party {
	return s.counterparty
}

func (s *streamSession) Send(ctx context.Context, msg Message) error {
	select {
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctxError(ctx)
	default:
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.stream.Send(wrapperspb.Bytes(b)); err != nil {
		return streamError(err)
	}
	return nil
}

func (s *streamSession) Receive(ctx context.Context) (Message, error) {
	if s.receiveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.receiveTimeout)
		defer cancel()
	}
	select {
	case msg, ok := <-s.in:
		if !ok {
			return Message{}, s.err
		}
		return msg, nil
	case <-s.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctxError(ctx)
	}
}

func (s *streamSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.closeFn()
		}
	})
	return nil
}

// streamError maps a gRPC stream error to the session error taxonomy
func streamError(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrClosed
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrTimeout, st.Message())
	case codes.Canceled, codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrClosed, st.Message())
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrUnknownFlow, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, st.Message())
	}

	re := &RemoteError{Message: st.Message()}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			re.Stage = info.GetMetadata()[stageMetadataKey]
		}
	}
	return re
}

// responderStatus reports a responder failure to the initiator with its stage marker
func responderStatus(err error) error {
	re := remoteError(err)
	st := status.New(codes.Aborted, re.Message)
	info := &errdetails.ErrorInfo{
		Reason:   reasonResponderError,
		Domain:   errorDomain,
		Metadata: map[string]string{},
	}
	if re.Stage != "" {
		info.Metadata[stageMetadataKey] = re.Stage
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}
