package handler

import (
	"errors"
	"net/http"

	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/service"
	"github.com/filo-ai/portal/pkg/logger"
)

// ChatHandler serves the reply API used by chat views.
type ChatHandler struct {
	service *service.ReplyService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ReplyService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Reply handles POST /chat
func (h *ChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, &model.ReplyResponse{Error: "invalid request body"})
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeJSON(w, http.StatusBadRequest, &model.ReplyResponse{Error: err.Error()})
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeJSON(w, http.StatusBadRequest, &model.ReplyResponse{Error: err.Error()})
		return
	}

	reply, err := h.service.Reply(ctx, middleware.GetUserID(ctx), req.ConversationID, req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, &model.ReplyResponse{Success: true, Reply: reply})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, &model.ReplyResponse{Error: "conversation not found"})
	case errors.Is(err, service.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, &model.ReplyResponse{Error: "message cannot be empty"})
	default:
		writeJSON(w, http.StatusBadGateway, &model.ReplyResponse{Error: "failed to generate reply"})
	}
}
