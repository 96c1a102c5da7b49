// Package history serves a user's stored chat logs. Every operation is scoped to the owning user.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

// Pagination defaults
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// UsageReader reports today's quota consumption
type UsageReader interface {
	Usage(ctx context.Context, subjectID uuid.UUID) (int, error)
	StartOfDay() time.Time
}

// Pagination describes one page of a listing
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination normalizes page and limit. Out-of-range values fall back to defaults; limit is capped.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset returns the row offset of the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Pagination) withTotal(total int) Pagination {
	p.Total = total
	p.Pages = (total + p.Limit - 1) / p.Limit
	return p
}

// LogPage is a page of chat logs
type LogPage struct {
	Logs       []*models.ChatLog `json:"logs"`
	Pagination Pagination        `json:"pagination"`
}

// ConversationPage is a page of conversation summaries
type ConversationPage struct {
	Conversations []*models.Conversation `json:"conversations"`
	Pagination    Pagination             `json:"pagination"`
}

// SaveRequest is a manually stored exchange
type SaveRequest struct {
	UserMessage    string
	BotReply       string
	ConversationID string
}

// Stats summarizes a user's chat activity
type Stats struct {
	TotalChats    int `json:"total_chats"`
	TodayChats    int `json:"today_chats"`
	Conversations int `json:"conversations"`
	QuotaUsed     int `json:"quota_used"`
	DailyLimit    int `json:"daily_limit"`
	Remaining     int `json:"remaining"`
}

// Service exposes chat history operations
type Service struct {
	chatLogs   repositories.ChatLogRepository
	usage      UsageReader
	dailyLimit int
	logger     *zap.Logger
}

// NewService creates a new history service
func NewService(chatLogs repositories.ChatLogRepository, usage UsageReader, dailyLimit int, logger *zap.Logger) *Service {
	return &Service{
		chatLogs:   chatLogs,
		usage:      usage,
		dailyLimit: dailyLimit,
		logger:     logger,
	}
}

// Save appends an exchange the client already has. It does not consume quota.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, req *SaveRequest) (*models.ChatLog, error) {
	if strings.TrimSpace(req.UserMessage) == "" || strings.TrimSpace(req.BotReply) == "" {
		return nil, services.NewValidationError("user_message and bot_reply are required")
	}

	entry := models.NewChatLog(userID, req.UserMessage, req.BotReply, req.ConversationID)
	if err := s.chatLogs.Append(ctx, entry); err != nil {
		return nil, s.storeError("failed to save chat log", userID, err)
	}
	return entry, nil
}

// List returns the user's logs, newest first, optionally limited to one conversation
func (s *Service) List(ctx context.Context, userID uuid.UUID, conversationID string, page Pagination) (*LogPage, error) {
	logs, err := s.chatLogs.ListByUser(ctx, userID, conversationID, page.Limit, page.Offset())
	if err != nil {
		return nil, s.storeError("failed to list chat history", userID, err)
	}

	total, err := s.chatLogs.CountByUser(ctx, userID, conversationID)
	if err != nil {
		return nil, s.storeError("failed to count chat history", userID, err)
	}

	if logs == nil {
		logs = []*models.ChatLog{}
	}
	return &LogPage{Logs: logs, Pagination: page.withTotal(total)}, nil
}

// Conversations returns the user's conversations, most recently active first
func (s *Service) Conversations(ctx context.Context, userID uuid.UUID, page Pagination) (*ConversationPage, error) {
	conversations, err := s.chatLogs.ListConversations(ctx, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, s.storeError("failed to list conversations", userID, err)
	}

	total, err := s.chatLogs.CountConversations(ctx, userID)
	if err != nil {
		return nil, s.storeError("failed to count conversations", userID, err)
	}

	if conversations == nil {
		conversations = []*models.Conversation{}
	}
	return &ConversationPage{Conversations: conversations, Pagination: page.withTotal(total)}, nil
}

// Delete removes one log owned by the user
func (s *Service) Delete(ctx context.Context, userID, logID uuid.UUID) error {
	deleted, err := s.chatLogs.Delete(ctx, userID, logID)
	if err != nil {
		return s.storeError("failed to delete chat log", userID, err)
	}
	if !deleted {
		return logNotFound()
	}
	return nil
}

// Clear removes all of the user's logs, or one conversation's when conversationID is set
func (s *Service) Clear(ctx context.Context, userID uuid.UUID, conversationID string) (int64, error) {
	var (
		removed int64
		err     error
	)
	if conversationID != "" {
		removed, err = s.chatLogs.DeleteByConversation(ctx, userID, conversationID)
	} else {
		removed, err = s.chatLogs.DeleteAllByUser(ctx, userID)
	}
	if err != nil {
		return 0, s.storeError("failed to clear chat history", userID, err)
	}

	s.logger.Info("chat history cleared",
		zap.String("user_id", userID.String()),
		zap.String("conversation_id", conversationID),
		zap.Int64("removed", removed),
	)
	return removed, nil
}

// SetLiked sets the liked flag. Repeating the same value is not an error.
func (s *Service) SetLiked(ctx context.Context, userID, logID uuid.UUID, liked bool) error {
	updated, err := s.chatLogs.SetLiked(ctx, userID, logID, liked)
	if err != nil {
		return s.storeError("failed to update chat log", userID, err)
	}
	if !updated {
		return logNotFound()
	}
	return nil
}

// Stats reports totals, today's activity and today's quota consumption
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	total, err := s.chatLogs.CountByUser(ctx, userID, "")
	if err != nil {
		return nil, s.storeError("failed to count chat history", userID, err)
	}

	today, err := s.chatLogs.CountSince(ctx, userID, s.usage.StartOfDay())
	if err != nil {
		return nil, s.storeError("failed to count today's chats", userID, err)
	}

	conversations, err := s.chatLogs.CountConversations(ctx, userID)
	if err != nil {
		return nil, s.storeError("failed to count conversations", userID, err)
	}

	used, err := s.usage.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalChats:    total,
		TodayChats:    today,
		Conversations: conversations,
		QuotaUsed:     used,
		DailyLimit:    s.dailyLimit,
	}
	if remaining := s.dailyLimit - used; remaining > 0 {
		stats.Remaining = remaining
	}
	return stats, nil
}

func (s *Service) storeError(message string, userID uuid.UUID, err error) error {
	s.logger.Error(message, zap.String("user_id", userID.String()), zap.Error(err))
	return services.WrapInfrastructure(message, err)
}

func logNotFound() error {
	return services.NewDomainError(services.ErrorTypeNotFound, "chat log not found", nil)
}
