package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/services/history"
	"go.uber.org/zap"
)

// StatsReader reports a user's chat activity
type StatsReader interface {
	Stats(ctx context.Context, userID uuid.UUID) (*history.Stats, error)
}

// UserHandler handles profile, stats and public endpoints
type UserHandler struct {
	accounts AccountService
	stats    StatsReader
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(accounts AccountService, stats StatsReader, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		stats:    stats,
		logger:   logger,
	}
}

// HandleProfile handles GET /api/user/profile
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.accounts.Profile(r.Context(), principal.SubjectID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, user, "", h.logger)
}

// HandleStats handles GET /api/user/stats
func (h *UserHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.stats.Stats(r.Context(), principal.SubjectID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, stats, "", h.logger)
}

// PingResponse is the body of GET /api/public/ping
type PingResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Greeting      string `json:"greeting"`
}

// HandlePing handles GET /api/public/ping. Authentication is optional.
func (h *UserHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	response := PingResponse{Greeting: "hello, guest"}
	if principal := middleware.GetPrincipalFromContext(r.Context()); principal != nil {
		response = PingResponse{
			Authenticated: true,
			UserID:        principal.SubjectID.String(),
			Greeting:      "hello, " + principal.ExternalID,
		}
	}

	writeOK(w, response, "", h.logger)
}
