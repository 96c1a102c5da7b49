// Package quota enforces per-user daily chat limits on top of a repositories.QuotaStore.
package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// Decision is the outcome of one CheckAndIncrement call
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Ledger counts chat calls per subject and calendar day
type Ledger struct {
	store    repositories.QuotaStore
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a ledger whose days are computed in location (UTC when nil)
func NewLedger(store repositories.QuotaStore, location *time.Location, logger *zap.Logger, opts ...Option) *Ledger {
	if location == nil {
		location = time.UTC
	}
	l := &Ledger{store: store, location: location, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndIncrement consumes one unit of today's quota when available.
// Denied attempts leave the counter unchanged; a limit of zero or less always denies.
func (l *Ledger) CheckAndIncrement(ctx context.Context, subjectID uuid.UUID, limit int) (*Decision, error) {
	now := l.now().In(l.location)
	decision := &Decision{Limit: limit, ResetAt: nextMidnight(now)}

	if limit <= 0 {
		return decision, nil
	}

	count, allowed, err := l.store.Increment(ctx, subjectID, now.Format(dayLayout), limit)
	if err != nil {
		l.logger.Error("quota increment failed",
			zap.String("user_id", subjectID.String()),
			zap.Error(err),
		)
		return nil, services.WrapInfrastructure("failed to check chat quota", err)
	}

	decision.Allowed = allowed
	decision.Count = count
	if remaining := limit - count; remaining > 0 {
		decision.Remaining = remaining
	}

	return decision, nil
}

// Usage returns how many chats the subject used today
func (l *Ledger) Usage(ctx context.Context, subjectID uuid.UUID) (int, error) {
	count, err := l.store.Current(ctx, subjectID, l.Today())
	if err != nil {
		return 0, services.WrapInfrastructure("failed to read chat quota", err)
	}
	return count, nil
}

// Today returns the current quota day as YYYY-MM-DD
func (l *Ledger) Today() string {
	return l.now().In(l.location).Format(dayLayout)
}

// StartOfDay returns midnight of the current quota day
func (l *Ledger) StartOfDay() time.Time {
	now := l.now().In(l.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.location)
}

func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}
