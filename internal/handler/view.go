package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/lifecycle"
	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/sidebar"
	"github.com/filo-ai/portal/internal/store"
	"github.com/filo-ai/portal/pkg/logger"
	"github.com/filo-ai/portal/pkg/metrics"
)

const (
	maxUploadBytes = 32 << 20
	maxWait        = 60 * time.Second
)

// ViewHandler serves the chat view of one mode. Routes carry the
// conversation or request id as {id}.
type ViewHandler struct {
	manager    *lifecycle.Manager
	mode       model.ViewMode
	uploads    store.Uploads
	validateID func(string) error
	logger     *logger.Logger
}

// NewViewHandler creates a view handler for mode.
func NewViewHandler(manager *lifecycle.Manager, mode model.ViewMode, uploads store.Uploads, log *logger.Logger) *ViewHandler {
	validate := middleware.ValidateConversationID
	if mode == model.ViewModeRequest {
		validate = middleware.ValidateRequestID
	}
	return &ViewHandler{
		manager:    manager,
		mode:       mode,
		uploads:    uploads,
		validateID: validate,
		logger:     log,
	}
}

func (h *ViewHandler) id(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := h.validateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func (h *ViewHandler) controller(w http.ResponseWriter, r *http.Request) (*lifecycle.Controller, bool) {
	id, ok := h.id(w, r)
	if !ok {
		return nil, false
	}
	ctrl, err := h.manager.View(middleware.GetUserID(r.Context()), h.mode, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "view not mounted")
		return nil, false
	}
	return ctrl, true
}

// Mount handles POST .../{id}/view
func (h *ViewHandler) Mount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var req model.MountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateCarriedText(req.InitialMessage); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.manager.Mount(ctx, middleware.GetUserID(ctx), h.mode, id, req.InitialMessage)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, store.ErrNotFound):
		writeRedirect(w, http.StatusNotFound, "conversation not found", DashboardPath)
	case errors.Is(err, lifecycle.ErrLoad):
		middleware.RequestLogger(ctx, h.logger).Warn("failed to load conversation",
			zap.String(logger.FieldConversationID, id),
			zap.String("mode", string(h.mode)),
			zap.Error(err),
		)
		writeRedirect(w, http.StatusBadGateway, "failed to load conversation", DashboardPath)
	case errors.Is(err, lifecycle.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
	default:
		middleware.RequestLogger(ctx, h.logger).Error("failed to mount view", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mount view")
	}
}

// Get handles GET .../{id}/view. With ?wait=true it answers once no reply
// or reload is in flight.
func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), maxWait)
		defer cancel()
		if err := ctrl.Wait(ctx); err != nil {
			writeError(w, http.StatusGatewayTimeout, "timed out waiting for reply")
			return
		}
	}

	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// Unmount handles DELETE .../{id}/view
func (h *ViewHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	h.manager.Unmount(middleware.GetUserID(r.Context()), h.mode, id)
	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST .../{id}/messages. The reply arrives asynchronously on
// the event stream or through GET .../view?wait=true.
func (h *ViewHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := ctrl.Send(r.Context(), req.Content)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, view)
	case errors.Is(err, lifecycle.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "content cannot be empty")
	case errors.Is(err, lifecycle.ErrBusy):
		writeError(w, http.StatusConflict, "a reply is already in progress")
	case errors.Is(err, lifecycle.ErrClosed):
		writeError(w, http.StatusNotFound, "view not mounted")
	default:
		writeError(w, http.StatusInternalServerError, "failed to send message")
	}
}

type sidebarRequest struct {
	Action sidebar.Action `json:"action"`
}

// Sidebar handles POST .../{id}/sidebar
func (h *ViewHandler) Sidebar(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req sidebarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := ctrl.Sidebar(req.Action)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, lifecycle.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "unknown sidebar action")
	default:
		writeError(w, http.StatusNotFound, "view not mounted")
	}
}

// Upload handles POST .../{id}/documents/{docID}. An id that matches no
// checklist slot is a no-op answered with the unchanged view.
func (h *ViewHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	documentID := chi.URLParam(r, "docID")
	if err := middleware.ValidateDocumentID(documentID); err != nil || !ctrl.HasDocument(documentID) {
		metrics.UploadsTotal.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	key := store.UploadKey(ctrl.ID(), documentID, header.Filename)

	size, err := h.uploads.PutUpload(ctx, key, contentType, file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		middleware.RequestLogger(ctx, h.logger).Error("failed to store upload",
			zap.String(logger.FieldConversationID, ctrl.ID()),
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	view, err := ctrl.MarkUploaded(documentID, &model.FileRef{
		Name:        header.Filename,
		Size:        size,
		ContentType: contentType,
		ObjectKey:   key,
		UploadedAt:  time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "view not mounted")
		return
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	writeJSON(w, http.StatusOK, view)
}
