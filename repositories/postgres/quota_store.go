package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/repositories"
	"go.uber.org/zap"
)

// QuotaStore keeps daily chat counters in user_stats.
// The whole check-and-increment is one conditional upsert, so concurrent callers
// for the same user serialize on the row lock.
type QuotaStore struct {
	db     *DB
	logger *zap.Logger
}

// NewQuotaStore creates a new user_stats backed quota store
func NewQuotaStore(db *DB, logger *zap.Logger) repositories.QuotaStore {
	return &QuotaStore{
		db:     db,
		logger: logger,
	}
}

// incrementQuery resets the counter on a new day and refuses to go past the limit.
// No row is returned when the WHERE clause rejects the update.
const incrementQuery = `
	INSERT INTO user_stats (user_id, daily_chat_count, last_chat_date, created_at, updated_at)
	VALUES ($1, 1, $2::date, NOW(), NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		daily_chat_count = CASE
			WHEN user_stats.last_chat_date = EXCLUDED.last_chat_date THEN user_stats.daily_chat_count + 1
			ELSE 1
		END,
		last_chat_date = EXCLUDED.last_chat_date,
		updated_at = NOW()
	WHERE user_stats.last_chat_date IS DISTINCT FROM EXCLUDED.last_chat_date
	   OR user_stats.daily_chat_count < $3
	RETURNING daily_chat_count
`

// Increment adds one to today's counter unless it already reached limit
func (s *QuotaStore) Increment(ctx context.Context, subjectID uuid.UUID, day string, limit int) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}

	var count int
	err := GetExecutor(ctx, s.db).QueryRowContext(ctx, incrementQuery, subjectID, day, limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := s.Current(ctx, subjectID, day)
		if err != nil {
			return 0, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment quota: %w", err)
	}

	return count, true, nil
}

// Current returns today's counter, zero when the stored row belongs to an earlier day
func (s *QuotaStore) Current(ctx context.Context, subjectID uuid.UUID, day string) (int, error) {
	query := `
		SELECT CASE WHEN last_chat_date = $2::date THEN daily_chat_count ELSE 0 END
		FROM user_stats
		WHERE user_id = $1
	`

	var count int
	err := GetExecutor(ctx, s.db).QueryRowContext(ctx, query, subjectID, day).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return count, nil
}
