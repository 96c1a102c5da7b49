package providers

import (
	"context"
	"errors"
	"net"
	"time"
)

// ChatCompletionProvider is an upstream conversational AI service
type ChatCompletionProvider interface {
	// Name returns the provider name (e.g., "dify", "openai")
	Name() string

	// Complete sends one user message and waits for the full reply.
	// Implementations must honor ctx cancellation and deadlines.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest represents one chat turn sent upstream
type CompletionRequest struct {
	// UserRef identifies the end user to the provider (e.g., "user_<id>")
	UserRef string `json:"user"`

	// Message is the user's text
	Message string `json:"message"`

	// ConversationID continues an existing upstream conversation when set
	ConversationID string `json:"conversation_id,omitempty"`
}

// CompletionResponse represents the provider's reply
type CompletionResponse struct {
	// Reply is the assistant text
	Reply string `json:"reply"`

	// ConversationID is the upstream conversation the turn belongs to
	ConversationID string `json:"conversation_id,omitempty"`

	// MessageID is the provider's identifier for the reply, when it returns one
	MessageID string `json:"message_id,omitempty"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Latency of the request
	Latency time.Duration `json:"latency"`
}

// Error codes carried by ProviderError
const (
	CodeTimeout   = "timeout"
	CodeUpstream  = "upstream"
	CodeMalformed = "malformed"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is one of CodeTimeout, CodeUpstream or CodeMalformed
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewTransportError classifies a failed HTTP round trip as timeout or upstream
func NewTransportError(provider string, err error) *ProviderError {
	if IsTimeout(err) {
		return NewProviderError(provider, CodeTimeout, "request timed out", 0, err)
	}
	return NewProviderError(provider, CodeUpstream, "request failed", 0, err)
}

// IsTimeout reports deadline expiry and network timeouts
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ErrorCode returns the ProviderError code, CodeTimeout for bare deadline errors, or CodeUpstream
func ErrorCode(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	if IsTimeout(err) {
		return CodeTimeout
	}
	return CodeUpstream
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model for providers that need one per request
	Model string

	// Timeout bounds a single HTTP round trip
	Timeout time.Duration

	// Additional headers
	Headers map[string]string
}
