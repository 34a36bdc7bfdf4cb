package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/legacy"
	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/pkg/logger"
)

// RequestStore persists legacy requests.
type RequestStore interface {
	SaveRequest(ctx context.Context, req model.Request) error
	Requests(ctx context.Context) ([]model.Request, error)
}

// RequestHandler handles legacy request endpoints.
type RequestHandler struct {
	store  RequestStore
	logger *logger.Logger
	now    func() time.Time
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(s RequestStore, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		store:  s,
		logger: log,
		now:    time.Now,
	}
}

// Create handles POST /api/v1/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body model.CreateRequestRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := legacy.NewRequest(body.Description, h.now())
	if errors.Is(err, legacy.ErrEmptyDescription) {
		writeError(w, http.StatusBadRequest, "description cannot be empty")
		return
	}
	if err == nil {
		err = middleware.ValidateMessageContent(req.Description)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SaveRequest(ctx, req); err != nil {
		middleware.RequestLogger(ctx, h.logger).Error("failed to save request", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create request")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"request": req,
		"path":    "/client/request/" + req.ID,
	})
}

// List handles GET /api/v1/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reqs, err := h.store.Requests(ctx)
	if err != nil {
		middleware.RequestLogger(ctx, h.logger).Error("failed to list requests", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if reqs == nil {
		reqs = []model.Request{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"total":    len(reqs),
	})
}

// Suggestions handles GET /api/v1/requests/suggestions
func (h *RequestHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"suggestions": append([]string(nil), legacy.Suggestions...),
	})
}
