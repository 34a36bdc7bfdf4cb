package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/service"
	"github.com/filo-ai/portal/pkg/logger"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *service.UserService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.SignUp(ctx, &req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, resp)
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	default:
		middleware.RequestLogger(ctx, h.logger).Error("sign-up failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create account")
	}
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.SignIn(ctx, &req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		middleware.RequestLogger(ctx, h.logger).Error("sign-in failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to sign in")
	}
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.service.Profile(ctx, middleware.GetUserID(ctx))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, profile)
	case errors.Is(err, service.ErrNotFound):
		writeRedirect(w, http.StatusUnauthorized, "unauthorized", middleware.SignInPath)
	default:
		middleware.RequestLogger(ctx, h.logger).Error("failed to load profile", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load profile")
	}
}
