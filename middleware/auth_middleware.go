package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/services/session"
	"github.com/upb/minichat-gateway/utils"
	"go.uber.org/zap"
)

// CredentialValidator checks bearer credentials against the token store
type CredentialValidator interface {
	Validate(ctx context.Context, token string) (*session.Principal, error)
	ValidateWithRefresh(ctx context.Context, token string) (*session.Principal, error)
	ValidateOptional(ctx context.Context, token string) *session.Principal
}

// AuthFailureRecorder counts rejected requests by error type
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// Stage is one step of an authentication pipeline. It receives the principal produced
// by the previous stage (nil before authentication) and returns the one to pass on.
type Stage func(r *http.Request, principal *session.Principal) (*session.Principal, error)

// AuthMiddleware builds authentication pipelines from stages
type AuthMiddleware struct {
	validator CredentialValidator
	metrics   AuthFailureRecorder
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. metrics may be nil.
func NewAuthMiddleware(validator CredentialValidator, metrics AuthFailureRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// authTokenCookieName is the cookie name for credentials (Authorization header takes precedence)
const authTokenCookieName = "auth_token"

// Authenticate validates the request credential
func (m *AuthMiddleware) Authenticate() Stage {
	return func(r *http.Request, _ *session.Principal) (*session.Principal, error) {
		return m.validator.Validate(r.Context(), extractToken(r))
	}
}

// RefreshAware validates the request credential and flags it when close to expiry
func (m *AuthMiddleware) RefreshAware() Stage {
	return func(r *http.Request, _ *session.Principal) (*session.Principal, error) {
		return m.validator.ValidateWithRefresh(r.Context(), extractToken(r))
	}
}

// RequireIssuedAs requires a credential issued with the given session type
func RequireIssuedAs(issuedAs string) Stage {
	return func(r *http.Request, principal *session.Principal) (*session.Principal, error) {
		if principal == nil {
			return nil, services.NewDomainError(services.ErrorTypeMissingCredential, "authentication required", nil)
		}
		if principal.IssuedAs != issuedAs {
			return nil, services.NewDomainError(services.ErrorTypePermissionDenied, "insufficient permissions", nil).
				WithDetail("required", issuedAs)
		}
		return principal, nil
	}
}

// Pipeline runs stages in order. The first failure halts the request with the error envelope;
// otherwise the final principal is attached to the request context.
func (m *AuthMiddleware) Pipeline(stages ...Stage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			principal, err := runStages(r, stages)
			if err != nil {
				m.reject(w, requestID, err)
				return
			}

			m.logger.Debug("authentication successful",
				zap.String("request_id", requestID),
				zap.String("user_id", principal.SubjectID.String()),
				zap.String("issued_as", principal.IssuedAs))

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// Optional attaches the principal when the request carries a valid credential.
// Requests without one, or with a bad one, continue anonymously.
func (m *AuthMiddleware) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := m.validator.ValidateOptional(r.Context(), extractToken(r))
			if principal == nil {
				m.logger.Debug("continuing anonymously",
					zap.String("request_id", GetRequestIDFromContext(r.Context())))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func runStages(r *http.Request, stages []Stage) (*session.Principal, error) {
	var principal *session.Principal
	for _, stage := range stages {
		next, err := stage(r, principal)
		if err != nil {
			return nil, err
		}
		principal = next
	}
	if principal == nil {
		return nil, services.NewDomainError(services.ErrorTypeMissingCredential, "authentication required", nil)
	}
	return principal, nil
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, requestID string, err error) {
	reason := string(services.GetErrorType(err))
	if reason == "" {
		reason = string(services.ErrorTypeInfrastructure)
	}
	if m.metrics != nil {
		m.metrics.RecordAuthFailure(reason)
	}

	if services.IsInfrastructureError(err) || services.GetErrorType(err) == "" {
		m.logger.Error("authentication pipeline failed",
			zap.String("request_id", requestID),
			zap.Error(err))
	} else {
		m.logger.Warn("request rejected",
			zap.String("request_id", requestID),
			zap.String("reason", reason),
			zap.Error(err))
	}

	if _, writeErr := utils.WriteDomainError(w, err); writeErr != nil {
		m.logger.Error("failed to write auth error response", zap.Error(writeErr))
	}
}

// extractToken extracts the credential from the Authorization header ("Bearer TOKEN")
// or the auth_token cookie. The header takes precedence when both are present.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(authTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
