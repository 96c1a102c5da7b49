package handlers

import (
	"context"
	"net/http"

	"github.com/upb/minichat-gateway/services/admin"
	"go.uber.org/zap"
)

// SummaryReader builds the admin usage summary
type SummaryReader interface {
	Summary(ctx context.Context) (*admin.Summary, error)
}

// AdminHandler serves operator endpoints. Routes must be gated on the admin credential type.
type AdminHandler struct {
	reports SummaryReader
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(reports SummaryReader, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		reports: reports,
		logger:  logger,
	}
}

// HandleSummary handles GET /api/admin/summary
func (h *AdminHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, summary, "", h.logger)
}
