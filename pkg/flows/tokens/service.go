package tokens

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/chainsafe/canton-token-flows/pkg/app/errors"
	"github.com/chainsafe/canton-token-flows/pkg/flows/distribution"
	"github.com/chainsafe/canton-token-flows/pkg/flows/finality"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/token"
	"github.com/chainsafe/canton-token-flows/pkg/vault"
)

// Service is the node's token API
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go --with-expecter
type Service interface {
	Issue(ctx context.Context, req *IssueRequest) (*TransactionResponse, error)
	Move(ctx context.Context, req *MoveRequest) (*TransactionResponse, error)
	Recipients(ctx context.Context, tokenTypeID string) (*RecipientsResponse, error)
	Balance(ctx context.Context, tokenTypeID string) (*BalanceResponse, error)
	Record(ctx context.Context, linearID string) (*RecordResponse, error)
}

type tokenService struct {
	orchestrator *Orchestrator
	registry     party.Registry
	recipients   distribution.Registry
	vault        vault.Vault
}

// NewService creates the token API on top of orchestrator
func NewService(orchestrator *Orchestrator, registry party.Registry, recipients distribution.Registry, v vault.Vault) Service {
	return &tokenService{
		orchestrator: orchestrator,
		registry:     registry,
		recipients:   recipients,
		vault:        v,
	}
}

// Issue resolves the parties named in req and issues the tokens from this node
func (s *tokenService) Issue(ctx context.Context, req *IssueRequest) (*TransactionResponse, error) {
	if len(req.Tokens) == 0 {
		return nil, apperrors.BadRequestError(nil, "no tokens requested")
	}
	observers, err := s.resolveAll(ctx, req.Observers)
	if err != nil {
		return nil, err
	}

	self := s.orchestrator.Self
	specs := make([]token.Spec, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		spec := token.Spec{TokenType: t.TokenType, Amount: t.Amount, Issuer: self, Observers: observers}
		if t.Holder != "" {
			holder, err := s.resolve(ctx, t.Holder)
			if err != nil {
				return nil, err
			}
			spec.Holder = &holder
		}
		specs = append(specs, spec)
	}

	tx, err := s.orchestrator.IssueTokens(ctx, req.Confidential, specs...)
	if err != nil {
		return nil, toServiceError(err)
	}
	return newTransactionResponse(tx), nil
}

// Move resolves the parties named in req and moves tokens held by this node
func (s *tokenService) Move(ctx context.Context, req *MoveRequest) (*TransactionResponse, error) {
	if req.Recipient == "" {
		return nil, apperrors.BadRequestError(nil, "recipient is required")
	}
	recipient, err := s.resolve(ctx, req.Recipient)
	if err != nil {
		return nil, err
	}
	observers, err := s.resolveAll(ctx, req.Observers)
	if err != nil {
		return nil, err
	}

	tx, err := s.orchestrator.MoveTokens(ctx, req.Confidential, MoveSpec{
		TokenTypeID: req.TokenType,
		Amount:      req.Amount,
		LinearID:    req.LinearID,
		Recipient:   recipient,
		Observers:   observers,
	})
	if err != nil {
		return nil, toServiceError(err)
	}
	return newTransactionResponse(tx), nil
}

// Recipients returns the distribution list of a token type
func (s *tokenService) Recipients(ctx context.Context, tokenTypeID string) (*RecipientsResponse, error) {
	list, err := s.recipients.ListRecipients(ctx, tokenTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	resp := &RecipientsResponse{TokenType: tokenTypeID, Recipients: make([]string, 0, len(list))}
	for _, p := range list {
		resp.Recipients = append(resp.Recipients, p.ID)
	}
	return resp, nil
}

// Balance sums the node's unconsumed amounts of a token type across issuers
func (s *tokenService) Balance(ctx context.Context, tokenTypeID string) (*BalanceResponse, error) {
	amount, err := s.vault.SumBalance(ctx, tokenTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum balance: %w", err)
	}
	return &BalanceResponse{TokenType: tokenTypeID, Amount: amount}, nil
}

// Record returns the latest unconsumed version of a record
func (s *tokenService) Record(ctx context.Context, linearID string) (*RecordResponse, error) {
	current, err := s.vault.FindCurrentRecord(ctx, linearID)
	if err != nil {
		return nil, toServiceError(err)
	}
	return &RecordResponse{Ref: current.Ref, Record: current.Record}, nil
}

func (s *tokenService) resolve(ctx context.Context, id string) (party.Party, error) {
	if err := party.ValidateID(id); err != nil {
		return party.Party{}, apperrors.BadRequestError(err, fmt.Sprintf("invalid party id %q", id))
	}
	p, err := s.registry.Lookup(ctx, id)
	if errors.Is(err, party.ErrUnknownParty) {
		return party.Party{}, apperrors.BadRequestError(err, fmt.Sprintf("unknown party %q", id))
	}
	if err != nil {
		return party.Party{}, fmt.Errorf("failed to look up party %s: %w", id, err)
	}
	return p, nil
}

func (s *tokenService) resolveAll(ctx context.Context, ids []string) ([]party.Party, error) {
	out := make([]party.Party, 0, len(ids))
	for _, id := range ids {
		p, err := s.resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// toServiceError maps workflow failures onto API error categories. The
// message names the failed stage.
func toServiceError(err error) error {
	switch {
	case errors.Is(err, token.ErrInvalidSpec),
		errors.Is(err, ledger.ErrInvalidProposal),
		errors.Is(err, ErrInvalidMove),
		errors.Is(err, ErrNotIssuer):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, ErrNotHolder):
		return apperrors.ForbiddenError(err, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		return apperrors.ConflictError(err, err.Error())
	case errors.Is(err, vault.ErrNotFound):
		return apperrors.ResourceNotFoundError(err, "record not found")
	}

	stage, ok := saga.StageOf(err)
	if !ok {
		return err
	}
	msg := fmt.Sprintf("%s failed: %s", stage, saga.KindName(err))
	switch {
	case errors.Is(err, finality.ErrConflict):
		return apperrors.ConflictError(err, msg)
	case errors.Is(err, session.ErrTimeout):
		return apperrors.TimeoutError(err, msg)
	case errors.Is(err, saga.ErrSession),
		errors.Is(err, saga.ErrActionProtocol),
		errors.Is(err, saga.ErrFinality):
		return apperrors.DependencyFailureError(err, msg)
	default:
		return apperrors.GeneralError(err)
	}
}
