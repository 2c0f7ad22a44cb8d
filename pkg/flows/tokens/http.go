package tokens

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/canton-token-flows/pkg/app/errors"
	apphttp "github.com/chainsafe/canton-token-flows/pkg/app/http"
)

const maxRequestBody = 1 << 20

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the token endpoints on the given chi router
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/tokens/issue", apphttp.HandleError(h.issue))
	r.Post("/tokens/move", apphttp.HandleError(h.move))
	r.Get("/tokens/{tokenType}/recipients", apphttp.HandleError(h.recipients))
	r.Get("/tokens/{tokenType}/balance", apphttp.HandleError(h.balance))
	r.Get("/records/{linearID}", apphttp.HandleError(h.record))
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func (h *HTTP) issue(w http.ResponseWriter, r *http.Request) error {
	var req IssueRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	resp, err := h.service.Issue(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) move(w http.ResponseWriter, r *http.Request) error {
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	resp, err := h.service.Move(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) recipients(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Recipients(r.Context(), chi.URLParam(r, "tokenType"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) balance(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Balance(r.Context(), chi.URLParam(r, "tokenType"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) record(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Record(r.Context(), chi.URLParam(r, "linearID"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}
