package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/services/session"
	"go.uber.org/zap"
)

// MockValidator is a mock implementation of CredentialValidator
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(ctx context.Context, token string) (*session.Principal, error) {
	args := m.Called(ctx, token)
	if p := args.Get(0); p != nil {
		return p.(*session.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockValidator) ValidateWithRefresh(ctx context.Context, token string) (*session.Principal, error) {
	args := m.Called(ctx, token)
	if p := args.Get(0); p != nil {
		return p.(*session.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockValidator) ValidateOptional(ctx context.Context, token string) *session.Principal {
	args := m.Called(ctx, token)
	if p := args.Get(0); p != nil {
		return p.(*session.Principal)
	}
	return nil
}

type recordingFailures struct {
	reasons []string
}

func (r *recordingFailures) RecordAuthFailure(reason string) {
	r.reasons = append(r.reasons, reason)
}

func testPrincipal(issuedAs string) *session.Principal {
	return &session.Principal{
		SubjectID:  uuid.New(),
		ExternalID: "openid-1",
		IssuedAs:   issuedAs,
		Token:      "valid-token",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

// captureHandler records the principal it was called with
type captureHandler struct {
	called    bool
	principal *session.Principal
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.principal = GetPrincipalFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestPipeline_Authenticate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid credential in Authorization header", func(t *testing.T) {
		validator := new(MockValidator)
		principal := testPrincipal(models.SessionTypeUser)
		validator.On("Validate", mock.Anything, "valid-token").Return(principal, nil)

		m := NewAuthMiddleware(validator, nil, logger)
		next := &captureHandler{}

		req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		m.Pipeline(m.Authenticate())(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.True(t, next.called)
		assert.Equal(t, principal, next.principal)
		validator.AssertExpectations(t)
	})

	t.Run("valid credential in cookie", func(t *testing.T) {
		validator := new(MockValidator)
		validator.On("Validate", mock.Anything, "cookie-token").Return(testPrincipal(models.SessionTypeUser), nil)

		m := NewAuthMiddleware(validator, nil, logger)
		next := &captureHandler{}

		req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		w := httptest.NewRecorder()
		m.Pipeline(m.Authenticate())(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, next.called)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing credential",
			err:        services.NewDomainError(services.ErrorTypeMissingCredential, "missing credential", nil),
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing_credential",
		},
		{
			name:       "expired credential",
			err:        services.NewDomainError(services.ErrorTypeExpiredCredential, "credential expired or invalid", nil),
			wantStatus: http.StatusUnauthorized,
			wantError:  "expired_credential",
		},
		{
			name:       "malformed credential",
			err:        services.NewDomainError(services.ErrorTypeInvalidCredential, "malformed credential", nil),
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_credential",
		},
		{
			name:       "token store down",
			err:        services.WrapInfrastructure("failed to look up credential", errors.New("connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "infrastructure_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := new(MockValidator)
			validator.On("Validate", mock.Anything, mock.Anything).Return(nil, tt.err)
			failures := &recordingFailures{}

			m := NewAuthMiddleware(validator, failures, logger)
			next := &captureHandler{}

			req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
			w := httptest.NewRecorder()
			m.Pipeline(m.Authenticate())(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, next.called)
			assert.Equal(t, tt.wantError, decodeError(t, w)["error"])
			assert.Equal(t, []string{tt.wantError}, failures.reasons)
		})
	}
}

func TestPipeline_RequireIssuedAs(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		issuedAs   string
		wantStatus int
	}{
		{name: "admin credential", issuedAs: models.SessionTypeAdmin, wantStatus: http.StatusOK},
		{name: "user credential", issuedAs: models.SessionTypeUser, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := new(MockValidator)
			validator.On("Validate", mock.Anything, "valid-token").Return(testPrincipal(tt.issuedAs), nil)

			m := NewAuthMiddleware(validator, nil, logger)
			req := httptest.NewRequest(http.MethodGet, "/api/admin/summary", nil)
			req.Header.Set("Authorization", "Bearer valid-token")
			w := httptest.NewRecorder()
			m.Pipeline(m.Authenticate(), RequireIssuedAs(models.SessionTypeAdmin))(&captureHandler{}).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("without prior authentication", func(t *testing.T) {
		_, err := RequireIssuedAs(models.SessionTypeAdmin)(httptest.NewRequest(http.MethodGet, "/", nil), nil)
		assert.Equal(t, services.ErrorTypeMissingCredential, services.GetErrorType(err))
	})
}

func TestPipeline_RefreshAware(t *testing.T) {
	principal := testPrincipal(models.SessionTypeUser)
	principal.NeedsRefresh = true

	validator := new(MockValidator)
	validator.On("ValidateWithRefresh", mock.Anything, "valid-token").Return(principal, nil)

	m := NewAuthMiddleware(validator, nil, zap.NewNop())
	next := &captureHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	m.Pipeline(m.RefreshAware())(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, next.principal)
	assert.True(t, next.principal.NeedsRefresh)
	validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestOptional(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid credential attaches principal", func(t *testing.T) {
		principal := testPrincipal(models.SessionTypeUser)
		validator := new(MockValidator)
		validator.On("ValidateOptional", mock.Anything, "valid-token").Return(principal)

		m := NewAuthMiddleware(validator, nil, logger)
		next := &captureHandler{}

		req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		m.Optional()(next).ServeHTTP(w, req)

		assert.Equal(t, principal, next.principal)
		validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
	})

	t.Run("cookie credential", func(t *testing.T) {
		principal := testPrincipal(models.SessionTypeUser)
		validator := new(MockValidator)
		validator.On("ValidateOptional", mock.Anything, "cookie-token").Return(principal)

		m := NewAuthMiddleware(validator, nil, logger)
		next := &captureHandler{}

		req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		m.Optional()(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, principal, next.principal)
	})

	t.Run("rejected credential continues anonymously", func(t *testing.T) {
		validator := new(MockValidator)
		validator.On("ValidateOptional", mock.Anything, "bad-token").Return(nil)
		failures := &recordingFailures{}

		m := NewAuthMiddleware(validator, failures, logger)
		next := &captureHandler{}

		req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()
		m.Optional()(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, next.called)
		assert.Nil(t, next.principal)
		assert.Empty(t, failures.reasons)
	})

	t.Run("no credential", func(t *testing.T) {
		validator := new(MockValidator)
		validator.On("ValidateOptional", mock.Anything, "").Return(nil)

		m := NewAuthMiddleware(validator, nil, logger)
		next := &captureHandler{}
		m.Optional()(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/public/ping", nil))

		assert.True(t, next.called)
		assert.Nil(t, next.principal)
		validator.AssertExpectations(t)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		cookie   string
		expected string
	}{
		{name: "bearer header", header: "Bearer abc", expected: "abc"},
		{name: "lowercase scheme", header: "bearer abc", expected: "abc"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "scheme only", header: "Bearer"},
		{name: "cookie fallback", cookie: "from-cookie", expected: "from-cookie"},
		{name: "header wins over cookie", header: "Bearer from-header", cookie: "from-cookie", expected: "from-header"},
		{name: "nothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			assert.Equal(t, tt.expected, extractToken(req))
		})
	}
}

func TestRequestMeta(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("User-Agent", "MicroMessenger/8.0")
	req = req.WithContext(WithRequestID(req.Context(), "req-42"))

	meta := RequestMeta(req)
	assert.Equal(t, "req-42", meta.RequestID)
	assert.Equal(t, "10.0.0.7", meta.IPAddress)
	assert.Equal(t, "MicroMessenger/8.0", meta.UserAgent)
}
