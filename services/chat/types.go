package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services/providers"
	"github.com/upb/minichat-gateway/services/quota"
)

// ConverseRequest is one chat turn submitted by an authenticated subject
type ConverseRequest struct {
	SubjectID      uuid.UUID
	Message        string
	ConversationID string
	Provider       string // empty selects the default provider
	Meta           models.RequestMeta
}

// ConverseResult is returned when the reply was produced and stored
type ConverseResult struct {
	Reply          string    `json:"reply"`
	ConversationID string    `json:"conversation_id,omitempty"`
	LogID          uuid.UUID `json:"log_id"`
	Remaining      int       `json:"remaining"`
}

// Outcome labels reported to metrics
const (
	OutcomeCompleted      = "completed"
	OutcomeDenied         = "denied"
	OutcomeRateLimited    = "rate_limited"
	OutcomeUpstreamFailed = "upstream_failed"
	OutcomeStoreFailed    = "store_failed"
)

// AccessChecker decides whether the subject may chat
type AccessChecker interface {
	AuthorizeChat(ctx context.Context, subjectID uuid.UUID) (*models.User, error)
}

// QuotaChecker consumes daily quota
type QuotaChecker interface {
	CheckAndIncrement(ctx context.Context, subjectID uuid.UUID, limit int) (*quota.Decision, error)
}

// ProviderResolver looks up upstream providers by name
type ProviderResolver interface {
	GetProvider(name string) (providers.ChatCompletionProvider, error)
}

// EventLogger receives audit events. Implementations must not block.
type EventLogger interface {
	LogChatCompleted(meta models.RequestMeta, userID, logID uuid.UUID, provider string, latency time.Duration, count int) error
	LogChatDenied(meta models.RequestMeta, userID uuid.UUID, reason string, details map[string]interface{}) error
	LogChatFailed(meta models.RequestMeta, userID uuid.UUID, provider string, latency time.Duration, statusCode int, message string) error
}

// Metrics receives chat counters and upstream latencies
type Metrics interface {
	RecordChatOutcome(outcome string)
	ObserveUpstream(provider, result string, latency time.Duration)
}

// Config holds chat limits
type Config struct {
	DailyLimit      int
	UpstreamTimeout time.Duration
}
