// Package account orchestrates login, credential rotation and logout.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/services/identity"
	"github.com/upb/minichat-gateway/services/session"
	"go.uber.org/zap"
)

// TokenIssuer mints, rotates and revokes credentials
type TokenIssuer interface {
	Issue(ctx context.Context, subjectID uuid.UUID, externalID, issuedAs string) (*session.IssuedToken, error)
	Rotate(ctx context.Context, current *session.Principal) (*session.IssuedToken, error)
	Revoke(ctx context.Context, token string) error
}

// EventLogger receives session audit events
type EventLogger interface {
	LogLogin(meta models.RequestMeta, userID uuid.UUID, openID string, created bool) error
	LogTokenRefreshed(meta models.RequestMeta, userID uuid.UUID) error
	LogLogout(meta models.RequestMeta, userID uuid.UUID) error
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
	OpenID    string    `json:"openid"`
	NewUser   bool      `json:"new_user"`
}

// VerifyResult echoes the caller's credential state
type VerifyResult struct {
	UserID       uuid.UUID `json:"user_id"`
	OpenID       string    `json:"openid"`
	Type         string    `json:"type"`
	ExpiresAt    time.Time `json:"expires_at"`
	NeedsRefresh bool      `json:"needs_refresh"`
}

// Service handles the session lifecycle of mini-program users
type Service struct {
	exchanger identity.Exchanger
	users     repositories.UserRepository
	txMgr     repositories.TransactionManager
	issuer    TokenIssuer
	events    EventLogger
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new account service. events may be nil.
func NewService(
	exchanger identity.Exchanger,
	users repositories.UserRepository,
	txMgr repositories.TransactionManager,
	issuer TokenIssuer,
	events EventLogger,
	logger *zap.Logger,
) *Service {
	return &Service{
		exchanger: exchanger,
		users:     users,
		txMgr:     txMgr,
		issuer:    issuer,
		events:    events,
		now:       time.Now,
		logger:    logger,
	}
}

type loginRecord struct {
	user    *models.User
	created bool
}

// Login exchanges a mini-program code, creates or refreshes the user and issues a credential.
// Admin users receive an admin credential; everyone else a user credential.
func (s *Service) Login(ctx context.Context, code string, meta models.RequestMeta) (*LoginResult, error) {
	ident, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	record, err := services.WithTransactionResult(ctx, s.txMgr, func(txCtx context.Context) (*loginRecord, error) {
		return s.recordLogin(txCtx, ident)
	})
	if err != nil {
		if services.GetErrorType(err) != "" {
			return nil, err
		}
		s.logger.Error("failed to persist login",
			zap.String("openid", ident.OpenID),
			zap.Error(err),
		)
		return nil, services.WrapInfrastructure("failed to save account", err)
	}

	user := record.user
	issued, err := s.issuer.Issue(ctx, user.ID, user.OpenID, user.SessionType())
	if err != nil {
		return nil, err
	}

	s.logEvent(func(e EventLogger) error { return e.LogLogin(meta, user.ID, user.OpenID, record.created) })
	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.Bool("new_user", record.created),
		zap.String("request_id", meta.RequestID),
	)

	return &LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		UserID:    user.ID,
		OpenID:    user.OpenID,
		NewUser:   record.created,
	}, nil
}

// recordLogin upserts the user for ident. Concurrent first logins with the same openid
// resolve to one row; the losing caller sees the stored account with created false.
func (s *Service) recordLogin(ctx context.Context, ident *identity.Identity) (*loginRecord, error) {
	now := s.now()
	user := models.NewUser(ident.OpenID, ident.SessionKey)
	if ident.UnionID != "" {
		unionID := ident.UnionID
		user.UnionID = &unionID
	}
	user.LastLoginAt = &now
	user.CreatedAt = now
	user.UpdatedAt = now

	created, err := s.users.UpsertLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	return &loginRecord{user: user, created: created}, nil
}

// Refresh rotates the caller's credential
func (s *Service) Refresh(ctx context.Context, principal *session.Principal, meta models.RequestMeta) (*session.IssuedToken, error) {
	issued, err := s.issuer.Rotate(ctx, principal)
	if err != nil {
		return nil, err
	}

	s.logEvent(func(e EventLogger) error { return e.LogTokenRefreshed(meta, principal.SubjectID) })
	return issued, nil
}

// Logout revokes the caller's credential
func (s *Service) Logout(ctx context.Context, principal *session.Principal, meta models.RequestMeta) error {
	if err := s.issuer.Revoke(ctx, principal.Token); err != nil {
		return err
	}

	s.logEvent(func(e EventLogger) error { return e.LogLogout(meta, principal.SubjectID) })
	return nil
}

// Verify reports the state of a validated credential
func (s *Service) Verify(principal *session.Principal) *VerifyResult {
	return &VerifyResult{
		UserID:       principal.SubjectID,
		OpenID:       principal.ExternalID,
		Type:         principal.IssuedAs,
		ExpiresAt:    principal.ExpiresAt,
		NeedsRefresh: principal.NeedsRefresh,
	}
}

// Profile returns the caller's user record
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "user not found", nil)
	}
	if err != nil {
		s.logger.Error("failed to load profile", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, services.WrapInfrastructure("failed to load profile", err)
	}
	return user, nil
}

func (s *Service) logEvent(emit func(EventLogger) error) {
	if s.events == nil {
		return
	}
	if err := emit(s.events); err != nil {
		s.logger.Warn("failed to queue audit event", zap.Error(err))
	}
}
