// Package access decides whether an authenticated subject may use the chat proxy.
package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

// Config holds the chat access rules
type Config struct {
	AllowedRoles []string

	// LegacyRoleFailOpen admits accounts created before roles existed (role unset)
	LegacyRoleFailOpen bool
}

// Policy gates chat access on account status and role
type Policy struct {
	users   repositories.UserRepository
	allowed map[string]struct{}
	cfg     Config
	logger  *zap.Logger
}

// NewPolicy creates a new access policy
func NewPolicy(users repositories.UserRepository, cfg Config, logger *zap.Logger) *Policy {
	allowed := make(map[string]struct{}, len(cfg.AllowedRoles))
	for _, role := range cfg.AllowedRoles {
		allowed[role] = struct{}{}
	}
	return &Policy{users: users, allowed: allowed, cfg: cfg, logger: logger}
}

// AuthorizeChat returns the subject's user record when chat is allowed
func (p *Policy) AuthorizeChat(ctx context.Context, subjectID uuid.UUID) (*models.User, error) {
	user, err := p.users.GetByID(ctx, subjectID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, denied("account not found")
	}
	if err != nil {
		p.logger.Error("failed to load user for access check",
			zap.String("user_id", subjectID.String()),
			zap.Error(err),
		)
		return nil, services.WrapInfrastructure("failed to load account", err)
	}

	if !user.IsActive() {
		return nil, denied("account is disabled")
	}

	role := user.RoleName()
	if role == "" {
		if p.cfg.LegacyRoleFailOpen {
			p.logger.Debug("admitting account without role",
				zap.String("user_id", subjectID.String()),
			)
			return user, nil
		}
		return nil, denied("account has no role")
	}

	if _, ok := p.allowed[role]; !ok {
		return nil, denied("role not allowed to chat").WithDetail("role", role)
	}

	return user, nil
}

func denied(message string) *services.DomainError {
	return services.NewDomainError(services.ErrorTypePermissionDenied, message, nil)
}
