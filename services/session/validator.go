package session

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

// Validator turns a presented token into a Principal.
//
// The checks run in a fixed order and the first failure wins:
//
//	missing token          -> missing_credential
//	no token store entry   -> expired_credential
//	bad signature          -> invalid_credential
//	exp in the past        -> expired_credential
//	claims differ from entry -> invalid_credential
type Validator struct {
	store  repositories.TokenStore
	cfg    Config
	parser *jwt.Parser
	logger *zap.Logger
}

// NewValidator creates a new Validator
func NewValidator(store repositories.TokenStore, cfg Config, logger *zap.Logger) *Validator {
	return &Validator{
		store: store,
		cfg:   cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(cfg.now),
		),
		logger: logger,
	}
}

// Validate is the required entry point: any failure halts the request
func (v *Validator) Validate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, services.NewDomainError(services.ErrorTypeMissingCredential, "missing credential", nil)
	}

	record, err := v.store.Get(ctx, token)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, expired()
	}
	if err != nil {
		v.logger.Error("token store lookup failed", zap.Error(err))
		return nil, services.WrapInfrastructure("failed to look up credential", err)
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, v.key); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, expired()
		}
		v.logger.Debug("credential rejected", zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeInvalidCredential, "malformed credential", err)
	}

	if claims.UserID != record.UserID || claims.OpenID != record.OpenID {
		v.logger.Warn("credential claims do not match stored session",
			zap.String("claim_user_id", claims.UserID),
			zap.String("stored_user_id", record.UserID),
		)
		return nil, services.NewDomainError(services.ErrorTypeInvalidCredential, "credential does not match session", nil)
	}

	subjectID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeInvalidCredential, "malformed credential", err)
	}

	return &Principal{
		SubjectID:  subjectID,
		ExternalID: claims.OpenID,
		IssuedAs:   record.Type,
		Token:      token,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// ValidateOptional never fails: every failure yields an anonymous (nil) principal
func (v *Validator) ValidateOptional(ctx context.Context, token string) *Principal {
	principal, err := v.Validate(ctx, token)
	if err != nil {
		return nil
	}
	return principal
}

// ValidateWithRefresh behaves like Validate and also flags credentials close to expiry.
// It never rotates the credential itself.
func (v *Validator) ValidateWithRefresh(ctx context.Context, token string) (*Principal, error) {
	principal, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	principal.NeedsRefresh = principal.ExpiresAt.Sub(v.cfg.now()) < v.cfg.RefreshThreshold
	return principal, nil
}

func (v *Validator) key(*jwt.Token) (interface{}, error) {
	return v.cfg.Secret, nil
}

func expired() error {
	return services.NewDomainError(services.ErrorTypeExpiredCredential, "credential expired or invalid", nil)
}
