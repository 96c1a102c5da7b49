// Package admin builds operator-facing usage summaries.
package admin

import (
	"context"
	"time"

	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

// DayClock returns the start of the current quota day
type DayClock interface {
	StartOfDay() time.Time
}

// Summary aggregates usage across all users
type Summary struct {
	Users            int       `json:"users"`
	Messages         int       `json:"messages"`
	Conversations    int       `json:"conversations"`
	MessagesToday    int       `json:"messages_today"`
	ActiveUsersToday int       `json:"active_users_today"`
	DeniedToday      int       `json:"denied_today"`
	Since            time.Time `json:"since"`
}

// Service serves admin reports
type Service struct {
	users     repositories.UserRepository
	chatLogs  repositories.ChatLogRepository
	auditLogs repositories.AuditRepository
	clock     DayClock
	logger    *zap.Logger
}

// NewService creates a new admin service
func NewService(
	users repositories.UserRepository,
	chatLogs repositories.ChatLogRepository,
	auditLogs repositories.AuditRepository,
	clock DayClock,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:     users,
		chatLogs:  chatLogs,
		auditLogs: auditLogs,
		clock:     clock,
		logger:    logger,
	}
}

// Summary counts users, messages and today's activity
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	since := s.clock.StartOfDay()

	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, s.storeError("failed to count users", err)
	}

	chats, err := s.chatLogs.Summary(ctx, since)
	if err != nil {
		return nil, s.storeError("failed to summarize chats", err)
	}

	denied, err := s.auditLogs.CountByAction(ctx, models.AuditActionChatDenied, since)
	if err != nil {
		return nil, s.storeError("failed to count denied chats", err)
	}

	return &Summary{
		Users:            users,
		Messages:         chats.TotalChats,
		Conversations:    chats.Conversations,
		MessagesToday:    chats.ChatsSince,
		ActiveUsersToday: chats.ActiveUsersSince,
		DeniedToday:      denied,
		Since:            since,
	}, nil
}

func (s *Service) storeError(message string, err error) error {
	s.logger.Error(message, zap.Error(err))
	return services.WrapInfrastructure(message, err)
}
