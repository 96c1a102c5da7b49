package session

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

// Issuer mints credentials and keeps their token store entries in step
type Issuer struct {
	store  repositories.TokenStore
	cfg    Config
	logger *zap.Logger
}

// NewIssuer creates a new Issuer
func NewIssuer(store repositories.TokenStore, cfg Config, logger *zap.Logger) *Issuer {
	return &Issuer{store: store, cfg: cfg, logger: logger}
}

// Issue signs a credential for the subject and records it in the token store.
// No token is returned unless the store write succeeded.
func (i *Issuer) Issue(ctx context.Context, subjectID uuid.UUID, externalID, issuedAs string) (*IssuedToken, error) {
	if issuedAs != models.SessionTypeAdmin {
		issuedAs = models.SessionTypeUser
	}

	now := i.cfg.now()
	expiresAt := now.Add(i.cfg.TTL)

	claims := Claims{
		UserID: subjectID.String(),
		OpenID: externalID,
		Type:   issuedAs,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return nil, services.WrapInfrastructure("failed to sign credential", err)
	}

	record := models.SessionRecord{UserID: claims.UserID, OpenID: externalID, Type: issuedAs}
	if err := i.store.Put(ctx, signed, record, i.cfg.TTL); err != nil {
		i.logger.Error("failed to store credential",
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
		return nil, services.WrapInfrastructure("failed to store credential", err)
	}

	return &IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Rotate issues a replacement for the principal's credential, then deletes the old entry.
// A failed delete leaves the old credential valid until its TTL and does not fail the rotation.
func (i *Issuer) Rotate(ctx context.Context, current *Principal) (*IssuedToken, error) {
	if current == nil {
		return nil, services.NewDomainError(services.ErrorTypeMissingCredential, "missing credential", nil)
	}

	issued, err := i.Issue(ctx, current.SubjectID, current.ExternalID, current.IssuedAs)
	if err != nil {
		return nil, err
	}

	if err := i.store.Delete(ctx, current.Token); err != nil {
		i.logger.Warn("failed to delete rotated credential",
			zap.String("user_id", current.SubjectID.String()),
			zap.Error(err),
		)
	}

	return issued, nil
}

// Revoke deletes the credential's entry. Revoking twice is not an error.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := i.store.Delete(ctx, token); err != nil {
		return services.WrapInfrastructure("failed to revoke credential", err)
	}
	return nil
}
