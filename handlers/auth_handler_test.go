package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/services/account"
	"github.com/upb/minichat-gateway/services/session"
	"go.uber.org/zap"
)

// MockAccountService is a mock implementation of AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Login(ctx context.Context, code string, meta models.RequestMeta) (*account.LoginResult, error) {
	args := m.Called(ctx, code, meta)
	if r := args.Get(0); r != nil {
		return r.(*account.LoginResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) Refresh(ctx context.Context, principal *session.Principal, meta models.RequestMeta) (*session.IssuedToken, error) {
	args := m.Called(ctx, principal, meta)
	if r := args.Get(0); r != nil {
		return r.(*session.IssuedToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountService) Logout(ctx context.Context, principal *session.Principal, meta models.RequestMeta) error {
	return m.Called(ctx, principal, meta).Error(0)
}

func (m *MockAccountService) Verify(principal *session.Principal) *account.VerifyResult {
	return m.Called(principal).Get(0).(*account.VerifyResult)
}

func (m *MockAccountService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestHandleLogin(t *testing.T) {
	logger := zap.NewNop()

	t.Run("successful login", func(t *testing.T) {
		accounts := new(MockAccountService)
		result := &account.LoginResult{
			Token:     "jwt",
			ExpiresAt: time.Now().Add(720 * time.Hour),
			UserID:    uuid.New(),
			OpenID:    "openid-abc",
			NewUser:   true,
		}
		accounts.On("Login", mock.Anything, "abc", mock.AnythingOfType("models.RequestMeta")).Return(result, nil)

		w := httptest.NewRecorder()
		NewAuthHandler(accounts, logger).HandleLogin(w, authedRequest(http.MethodPost, "/api/auth/login", `{"code":"abc"}`, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		var data account.LoginResult
		decodeData(t, env, &data)
		assert.Equal(t, "jwt", data.Token)
		assert.Equal(t, result.UserID, data.UserID)
		assert.True(t, data.NewUser)
		accounts.AssertExpectations(t)
	})

	t.Run("missing code", func(t *testing.T) {
		accounts := new(MockAccountService)

		w := httptest.NewRecorder()
		NewAuthHandler(accounts, logger).HandleLogin(w, authedRequest(http.MethodPost, "/api/auth/login", `{}`, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "validation", env.Error)
		assert.Contains(t, env.Details, "code")
		accounts.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("identity exchange failure", func(t *testing.T) {
		accounts := new(MockAccountService)
		accounts.On("Login", mock.Anything, "bad", mock.Anything).
			Return(nil, services.NewDomainError(services.ErrorTypeIdentityExchangeFailed, "code rejected", nil).WithDetail("errcode", 40029))

		w := httptest.NewRecorder()
		NewAuthHandler(accounts, logger).HandleLogin(w, authedRequest(http.MethodPost, "/api/auth/login", `{"code":"bad"}`, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "identity_exchange_failed", env.Error)
		assert.Equal(t, float64(40029), env.Details["errcode"])
	})
}

func TestHandleRefresh(t *testing.T) {
	principal := newPrincipal()
	accounts := new(MockAccountService)
	accounts.On("Refresh", mock.Anything, principal, mock.Anything).
		Return(&session.IssuedToken{Token: "rotated", ExpiresAt: time.Now().Add(time.Hour)}, nil)

	w := httptest.NewRecorder()
	NewAuthHandler(accounts, zap.NewNop()).HandleRefresh(w, authedRequest(http.MethodPost, "/api/auth/refresh", "", principal))

	assert.Equal(t, http.StatusOK, w.Code)
	var token session.IssuedToken
	decodeData(t, decodeEnvelope(t, w), &token)
	assert.Equal(t, "rotated", token.Token)
}

func TestHandleLogout(t *testing.T) {
	t.Run("revokes the credential", func(t *testing.T) {
		principal := newPrincipal()
		accounts := new(MockAccountService)
		accounts.On("Logout", mock.Anything, principal, mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		NewAuthHandler(accounts, zap.NewNop()).HandleLogout(w, authedRequest(http.MethodPost, "/api/auth/logout", "", principal))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "logged out", decodeEnvelope(t, w).Message)
		accounts.AssertExpectations(t)
	})

	t.Run("without principal", func(t *testing.T) {
		accounts := new(MockAccountService)

		w := httptest.NewRecorder()
		NewAuthHandler(accounts, zap.NewNop()).HandleLogout(w, authedRequest(http.MethodPost, "/api/auth/logout", "", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing_credential", decodeEnvelope(t, w).Error)
	})
}

func TestHandleVerify(t *testing.T) {
	principal := newPrincipal()
	principal.NeedsRefresh = true
	accounts := new(MockAccountService)
	accounts.On("Verify", principal).Return(&account.VerifyResult{
		UserID:       principal.SubjectID,
		OpenID:       principal.ExternalID,
		Type:         principal.IssuedAs,
		ExpiresAt:    principal.ExpiresAt,
		NeedsRefresh: true,
	})

	w := httptest.NewRecorder()
	NewAuthHandler(accounts, zap.NewNop()).HandleVerify(w, authedRequest(http.MethodGet, "/api/auth/verify", "", principal))

	assert.Equal(t, http.StatusOK, w.Code)
	var result account.VerifyResult
	decodeData(t, decodeEnvelope(t, w), &result)
	assert.Equal(t, principal.SubjectID, result.UserID)
	assert.True(t, result.NeedsRefresh)
}
