// Package chat proxies user messages to the upstream chat provider behind access and quota checks.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/services/providers"
	"github.com/upb/minichat-gateway/services/quota"
	"go.uber.org/zap"
)

// Service runs the chat pipeline: access, quota, upstream call, history append
type Service struct {
	access    AccessChecker
	quota     QuotaChecker
	providers ProviderResolver
	chatLogs  repositories.ChatLogRepository
	events    EventLogger
	metrics   Metrics
	cfg       Config
	logger    *zap.Logger
}

// NewService creates a new chat service. events and metrics may be nil.
func NewService(
	access AccessChecker,
	quotaChecker QuotaChecker,
	resolver ProviderResolver,
	chatLogs repositories.ChatLogRepository,
	events EventLogger,
	metrics Metrics,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}

	return &Service{
		access:    access,
		quota:     quotaChecker,
		providers: resolver,
		chatLogs:  chatLogs,
		events:    events,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Converse sends one message upstream on behalf of the subject.
// Quota is consumed before the upstream call and is not refunded when the call fails.
func (s *Service) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, services.NewValidationError("message is required")
	}

	logger := s.logger.With(
		zap.String("user_id", req.SubjectID.String()),
		zap.String("request_id", req.Meta.RequestID),
	)

	// Step 1: access
	if _, err := s.access.AuthorizeChat(ctx, req.SubjectID); err != nil {
		if services.IsPermissionDeniedError(err) {
			s.recordDenied(req, string(services.ErrorTypePermissionDenied), services.GetErrorDetails(err), OutcomeDenied)
			logger.Info("chat denied by access policy", zap.String("reason", services.GetErrorMessage(err)))
		}
		return nil, err
	}

	// Step 2: quota
	decision, err := s.quota.CheckAndIncrement(ctx, req.SubjectID, s.cfg.DailyLimit)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		details := map[string]interface{}{
			"limit":    decision.Limit,
			"count":    decision.Count,
			"reset_at": decision.ResetAt,
		}
		s.recordDenied(req, string(services.ErrorTypeRateLimited), details, OutcomeRateLimited)
		logger.Info("daily chat limit reached", zap.Int("limit", decision.Limit))
		return nil, rateLimited(decision)
	}

	// Step 3: upstream
	provider, err := s.providers.GetProvider(req.Provider)
	if err != nil {
		return nil, services.WrapInfrastructure("chat provider unavailable", err)
	}

	upstreamCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	resp, err := provider.Complete(upstreamCtx, &providers.CompletionRequest{
		UserRef:        "user_" + req.SubjectID.String(),
		Message:        message,
		ConversationID: req.ConversationID,
	})
	latency := time.Since(start)

	if err != nil {
		domainErr := upstreamError(err)
		s.observeUpstream(provider.Name(), string(domainErr.Type), latency)
		s.recordChatOutcome(OutcomeUpstreamFailed)
		s.logEvent(func(e EventLogger) error {
			return e.LogChatFailed(req.Meta, req.SubjectID, provider.Name(), latency, upstreamStatus(err), domainErr.Message)
		})
		logger.Warn("chat provider call failed",
			zap.String("provider", provider.Name()),
			zap.String("error_type", string(domainErr.Type)),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, domainErr
	}
	s.observeUpstream(provider.Name(), "ok", latency)

	// Step 4: history
	conversationID := resp.ConversationID
	if conversationID == "" {
		conversationID = req.ConversationID
	}

	entry := models.NewChatLog(req.SubjectID, message, resp.Reply, conversationID)
	if err := s.chatLogs.Append(ctx, entry); err != nil {
		s.recordChatOutcome(OutcomeStoreFailed)
		logger.Error("failed to append chat log", zap.Error(err))
		return nil, services.WrapInfrastructure("failed to save chat history", err)
	}

	s.recordChatOutcome(OutcomeCompleted)
	s.logEvent(func(e EventLogger) error {
		return e.LogChatCompleted(req.Meta, req.SubjectID, entry.ID, provider.Name(), latency, decision.Count)
	})

	logger.Debug("chat completed",
		zap.String("provider", provider.Name()),
		zap.Int("daily_count", decision.Count),
		zap.Duration("latency", latency),
	)

	return &ConverseResult{
		Reply:          resp.Reply,
		ConversationID: conversationID,
		LogID:          entry.ID,
		Remaining:      decision.Remaining,
	}, nil
}

func (s *Service) recordDenied(req *ConverseRequest, reason string, details map[string]interface{}, outcome string) {
	s.recordChatOutcome(outcome)
	s.logEvent(func(e EventLogger) error {
		return e.LogChatDenied(req.Meta, req.SubjectID, reason, details)
	})
}

func (s *Service) logEvent(emit func(EventLogger) error) {
	if s.events == nil {
		return
	}
	if err := emit(s.events); err != nil {
		s.logger.Warn("failed to queue audit event", zap.Error(err))
	}
}

func (s *Service) recordChatOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordChatOutcome(outcome)
	}
}

func (s *Service) observeUpstream(provider, result string, latency time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveUpstream(provider, result, latency)
	}
}

func rateLimited(decision *quota.Decision) *services.DomainError {
	return services.NewDomainError(services.ErrorTypeRateLimited, "daily chat limit reached", nil).
		WithDetail("limit", decision.Limit).
		WithDetail("count", decision.Count).
		WithDetail("reset_at", decision.ResetAt)
}

// upstreamError maps a provider failure onto the upstream error types
func upstreamError(err error) *services.DomainError {
	switch providers.ErrorCode(err) {
	case providers.CodeTimeout:
		return services.NewDomainError(services.ErrorTypeUpstreamTimeout, "chat provider timed out", err)
	case providers.CodeMalformed:
		return services.NewDomainError(services.ErrorTypeUpstreamMalformed, "chat provider returned a malformed response", err)
	default:
		return services.NewDomainError(services.ErrorTypeUpstreamError, "chat provider error", err)
	}
}

func upstreamStatus(err error) int {
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}
