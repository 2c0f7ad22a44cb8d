package tokens_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/canton-token-flows/pkg/app/errors"
	"github.com/chainsafe/canton-token-flows/pkg/flows/tokens"
	"github.com/chainsafe/canton-token-flows/pkg/flows/tokens/mocks"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
)

func newTokensTestServer(svc tokens.Service) http.Handler {
	r := chi.NewRouter()
	tokens.RegisterRoutes(r, tokens.NewLog(svc, zap.NewNop()), zap.NewNop())
	return r
}

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func TestTokensHTTP_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	svc := mocks.NewService(t)
	handler := newTokensTestServer(svc)

	for _, path := range []string{"/tokens/issue", "/tokens/move"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{invalid"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusBadRequest, rec.Code)
		}
		var got errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("failed to decode response JSON: %v", err)
		}
		if got.Error != "invalid JSON" {
			t.Fatalf("expected error %q, got %q", "invalid JSON", got.Error)
		}
	}
}

func TestTokensHTTP_Issue(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		Issue(mock.Anything, mock.MatchedBy(func(req *tokens.IssueRequest) bool {
			return len(req.Tokens) == 1 &&
				req.Tokens[0].TokenType.ID == "X" &&
				req.Tokens[0].Amount.Equal(decimal.NewFromInt(100)) &&
				req.Tokens[0].Holder == "bob::ab" &&
				req.Confidential
		})).
		Return(&tokens.TransactionResponse{TxID: "deadbeef"}, nil).
		Once()
	handler := newTokensTestServer(svc)

	body := `{"tokens":[{"token_type":{"id":"X","fraction_digits":2},"amount":"100","holder":"bob::ab"}],"observers":["carol::cd"],"confidential":true}`
	req := httptest.NewRequest(http.MethodPost, "/tokens/issue", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var got tokens.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if got.TxID != "deadbeef" {
		t.Fatalf("expected tx id %q, got %q", "deadbeef", got.TxID)
	}
}

func TestTokensHTTP_MoveFailureCarriesStatus(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		Move(mock.Anything, mock.Anything).
		Return(nil, apperrors.DependencyFailureError(errors.New("closed"), "finality failed: session")).
		Once()
	handler := newTokensTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/tokens/move", bytes.NewBufferString(`{"token_type":"X","amount":"1","recipient":"dave::ef"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
	var got errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if got.Error != "finality failed: session" {
		t.Fatalf("expected error %q, got %q", "finality failed: session", got.Error)
	}
}

func TestTokensHTTP_Queries(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		Recipients(mock.Anything, "X").
		Return(&tokens.RecipientsResponse{TokenType: "X", Recipients: []string{"anonymous::01"}}, nil).
		Once()
	svc.EXPECT().
		Balance(mock.Anything, "X").
		Return(&tokens.BalanceResponse{TokenType: "X", Amount: decimal.NewFromInt(60)}, nil).
		Once()
	svc.EXPECT().
		Record(mock.Anything, "missing").
		Return(nil, apperrors.ResourceNotFoundError(nil, "record not found")).
		Once()
	svc.EXPECT().
		Record(mock.Anything, "lin-1").
		Return(&tokens.RecordResponse{Ref: ledger.StateRef{TxID: "aa", Index: 1}}, nil).
		Once()
	handler := newTokensTestServer(svc)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/tokens/X/recipients")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var recipients tokens.RecipientsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &recipients); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if len(recipients.Recipients) != 1 || recipients.Recipients[0] != "anonymous::01" {
		t.Fatalf("unexpected recipients %v", recipients.Recipients)
	}

	rec = get("/tokens/X/balance")
	var balance tokens.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if !balance.Amount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected balance 60, got %s", balance.Amount)
	}

	if rec := get("/records/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := get("/records/lin-1"); rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
