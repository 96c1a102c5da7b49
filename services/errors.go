package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeMissingCredential      ErrorType = "missing_credential"
	ErrorTypeInvalidCredential      ErrorType = "invalid_credential"
	ErrorTypeExpiredCredential      ErrorType = "expired_credential"
	ErrorTypePermissionDenied       ErrorType = "permission_denied"
	ErrorTypeRateLimited            ErrorType = "rate_limited"
	ErrorTypeUpstreamTimeout        ErrorType = "upstream_timeout"
	ErrorTypeUpstreamError          ErrorType = "upstream_error"
	ErrorTypeUpstreamMalformed      ErrorType = "upstream_malformed_response"
	ErrorTypeInfrastructure         ErrorType = "infrastructure_error"
	ErrorTypeValidation             ErrorType = "validation"
	ErrorTypeNotFound               ErrorType = "not_found"
	ErrorTypeIdentityExchangeFailed ErrorType = "identity_exchange_failed"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error.
// Only call it on errors built with NewDomainError, never on the package-level values below.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables, for errors.Is comparisons

var (
	// Credential errors
	ErrMissingCredential = NewDomainError(ErrorTypeMissingCredential, "missing credential", nil)
	ErrInvalidCredential = NewDomainError(ErrorTypeInvalidCredential, "malformed credential", nil)
	ErrExpiredCredential = NewDomainError(ErrorTypeExpiredCredential, "credential expired or invalid", nil)

	ErrPermissionDenied = NewDomainError(ErrorTypePermissionDenied, "permission denied", nil)
	ErrRateLimited      = NewDomainError(ErrorTypeRateLimited, "daily chat limit reached", nil)

	// Upstream chat provider errors
	ErrUpstreamTimeout   = NewDomainError(ErrorTypeUpstreamTimeout, "chat provider timed out", nil)
	ErrUpstreamError     = NewDomainError(ErrorTypeUpstreamError, "chat provider error", nil)
	ErrUpstreamMalformed = NewDomainError(ErrorTypeUpstreamMalformed, "chat provider returned a malformed response", nil)

	ErrInfrastructure = NewDomainError(ErrorTypeInfrastructure, "internal server error", nil)

	ErrInvalidInput     = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrUserNotFound     = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrChatLogNotFound  = NewDomainError(ErrorTypeNotFound, "chat log not found", nil)
	ErrIdentityExchange = NewDomainError(ErrorTypeIdentityExchangeFailed, "identity exchange failed", nil)
)

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsCredentialError reports missing, invalid and expired credentials
func IsCredentialError(err error) bool {
	return isType(err, ErrorTypeMissingCredential) ||
		isType(err, ErrorTypeInvalidCredential) ||
		isType(err, ErrorTypeExpiredCredential)
}

// IsPermissionDeniedError checks if an error is a permission error
func IsPermissionDeniedError(err error) bool {
	return isType(err, ErrorTypePermissionDenied)
}

// IsRateLimitedError checks if an error is a quota denial
func IsRateLimitedError(err error) bool {
	return isType(err, ErrorTypeRateLimited)
}

// IsUpstreamError reports any of the three upstream failure kinds
func IsUpstreamError(err error) bool {
	return isType(err, ErrorTypeUpstreamTimeout) ||
		isType(err, ErrorTypeUpstreamError) ||
		isType(err, ErrorTypeUpstreamMalformed)
}

// IsInfrastructureError checks if an error is an infrastructure error
func IsInfrastructureError(err error) bool {
	return isType(err, ErrorTypeInfrastructure)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetErrorMessage returns the public message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// WrapInfrastructure wraps a store or transport failure
func WrapInfrastructure(message string, err error) error {
	return NewDomainError(ErrorTypeInfrastructure, message, err)
}

// NewValidationError creates a validation error with a caller-facing message
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}
