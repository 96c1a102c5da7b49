package handlers

import (
	"net/http"

	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/services/session"
	"github.com/upb/minichat-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	requestID := middleware.GetRequestIDFromContext(r.Context())
	errType := services.GetErrorType(err)

	switch {
	case errType == "":
		logger.Error("unhandled error type",
			zap.String("request_id", requestID),
			zap.Error(err))
	case services.IsInfrastructureError(err):
		logger.Error("infrastructure failure",
			zap.String("request_id", requestID),
			zap.Error(err))
	case services.IsUpstreamError(err):
		logger.Warn("upstream failure",
			zap.String("request_id", requestID),
			zap.String("error_type", string(errType)),
			zap.Error(err))
	default:
		logger.Debug("handled service error",
			zap.String("request_id", requestID),
			zap.String("error_type", string(errType)),
			zap.Any("details", services.GetErrorDetails(err)))
	}

	if _, writeErr := utils.WriteDomainError(w, err); writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// writeOK writes the success envelope, logging encode failures
func writeOK(w http.ResponseWriter, data interface{}, message string, logger *zap.Logger) {
	if err := utils.WriteOK(w, data, message); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}

// principalOrReject returns the authenticated caller, writing missing_credential when absent
func principalOrReject(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*session.Principal, bool) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		HandleServiceError(w, r, services.NewDomainError(services.ErrorTypeMissingCredential, "authentication required", nil), logger)
		return nil, false
	}
	return principal, true
}
