package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind names a protocol message
type Kind string

const (
	KindSessionOpen         Kind = "session_open"
	KindActionRequest       Kind = "action_request"
	KindIdentityRequest     Kind = "identity_request"
	KindIdentityResponse    Kind = "identity_response"
	KindTransactionRole     Kind = "transaction_role"
	KindFinalityProposal    Kind = "finality_proposal"
	KindFinalityPrepared    Kind = "finality_prepared"
	KindFinalityTransaction Kind = "finality_transaction"
	KindFinalityAck         Kind = "finality_ack"
)

// Message is one frame exchanged on a session
type Message struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds a message of kind carrying v as JSON
func Encode(kind Kind, v any) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return Message{Kind: kind, Payload: payload}, nil
}

// Decode checks msg is of kind and decodes its payload
func Decode[T any](msg Message, kind Kind) (T, error) {
	var v T
	if msg.Kind != kind {
		return v, fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedMessage, kind, msg.Kind)
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: malformed %s: %w", ErrUnexpectedMessage, kind, err)
	}
	return v, nil
}

// SendValue encodes v and sends it on s
func SendValue(ctx context.Context, s Session, kind Kind, v any) error {
	msg, err := Encode(kind, v)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}

// ReceiveValue receives the next message on s and decodes it as kind
func ReceiveValue[T any](ctx context.Context, s Session, kind Kind) (T, error) {
	msg, err := s.Receive(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](msg, kind)
}
