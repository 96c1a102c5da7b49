package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services/account"
	"github.com/upb/minichat-gateway/services/session"
	"github.com/upb/minichat-gateway/utils"
	"go.uber.org/zap"
)

// AccountService is the account surface used by the auth and user handlers
type AccountService interface {
	Login(ctx context.Context, code string, meta models.RequestMeta) (*account.LoginResult, error)
	Refresh(ctx context.Context, principal *session.Principal, meta models.RequestMeta) (*session.IssuedToken, error)
	Logout(ctx context.Context, principal *session.Principal, meta models.RequestMeta) error
	Verify(principal *session.Principal) *account.VerifyResult
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

// AuthHandler handles session lifecycle requests
type AuthHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Code, middleware.RequestMeta(r))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, result, "login successful", h.logger)
}

// HandleRefresh handles POST /api/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	token, err := h.accounts.Refresh(r.Context(), principal, middleware.RequestMeta(r))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, token, "token refreshed", h.logger)
}

// HandleLogout handles POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.accounts.Logout(r.Context(), principal, middleware.RequestMeta(r)); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, nil, "logged out", h.logger)
}

// HandleVerify handles GET /api/auth/verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	writeOK(w, h.accounts.Verify(principal), "", h.logger)
}
