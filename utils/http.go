package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/minichat-gateway/services"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response wrapping data in the success envelope
func WriteOK(w http.ResponseWriter, data interface{}, message string) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data, Message: message})
}

// WriteCreated writes a 201 Created response
func WriteCreated(w http.ResponseWriter, data interface{}, message string) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data, Message: message})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes the error envelope
func WriteError(w http.ResponseWriter, status int, code string, message string, details map[string]interface{}) error {
	if len(details) == 0 {
		details = nil
	}
	return WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteBadRequest writes a 400 validation response
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusBadRequest, string(services.ErrorTypeValidation), message, details)
}

// WriteInternalServerError writes a 500 response without leaking the cause
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteError(w, http.StatusInternalServerError, string(services.ErrorTypeInfrastructure), message, nil)
}

// StatusForErrorType returns the HTTP status for a domain error type
func StatusForErrorType(errType services.ErrorType) int {
	switch errType {
	case services.ErrorTypeMissingCredential,
		services.ErrorTypeInvalidCredential,
		services.ErrorTypeExpiredCredential:
		return http.StatusUnauthorized
	case services.ErrorTypePermissionDenied:
		return http.StatusForbidden
	case services.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case services.ErrorTypeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case services.ErrorTypeUpstreamError, services.ErrorTypeUpstreamMalformed:
		return http.StatusBadGateway
	case services.ErrorTypeValidation, services.ErrorTypeIdentityExchangeFailed:
		return http.StatusBadRequest
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err using the error envelope and returns the status written.
// Errors outside the taxonomy and infrastructure errors are reported with a generic message.
func WriteDomainError(w http.ResponseWriter, err error) (int, error) {
	errType := services.GetErrorType(err)
	if errType == "" || errType == services.ErrorTypeInfrastructure {
		return http.StatusInternalServerError, WriteInternalServerError(w, "An internal error occurred")
	}

	status := StatusForErrorType(errType)
	if errType == services.ErrorTypeRateLimited {
		if resetAt, ok := services.GetErrorDetails(err)["reset_at"].(time.Time); ok {
			// Whole seconds, rounded up
			if wait := int64(math.Ceil(time.Until(resetAt).Seconds())); wait > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(wait, 10))
			}
		}
	}
	return status, WriteError(w, status, string(errType), services.GetErrorMessage(err), services.GetErrorDetails(err))
}

// PageQuery reads page and limit query parameters, leaving zero for absent or malformed values
func PageQuery(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
