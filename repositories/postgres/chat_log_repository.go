package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"go.uber.org/zap"
)

const chatLogColumns = `id, user_id, user_message, bot_reply, conversation_id, liked, created_at, updated_at`

// ChatLogRepository implements the repositories.ChatLogRepository interface
type ChatLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewChatLogRepository creates a new chat log repository
func NewChatLogRepository(db *DB, logger *zap.Logger) repositories.ChatLogRepository {
	return &ChatLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a new chat log entry
func (r *ChatLogRepository) Append(ctx context.Context, log *models.ChatLog) error {
	query := `
		INSERT INTO chat_logs (` + chatLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.UserMessage,
		log.BotReply,
		log.ConversationID,
		log.Liked,
		log.CreatedAt,
		log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append chat log: %w", err)
	}

	r.logger.Debug("chat log appended",
		zap.String("id", log.ID.String()),
		zap.String("user_id", log.UserID.String()))
	return nil
}

// ListByUser returns a page of logs, newest first
func (r *ChatLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, conversationID string, limit, offset int) ([]*models.ChatLog, error) {
	if conversationID == "" {
		query := `
			SELECT ` + chatLogColumns + `
			FROM chat_logs
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		return r.queryChatLogs(ctx, query, userID, limit, offset)
	}

	query := `
		SELECT ` + chatLogColumns + `
		FROM chat_logs
		WHERE user_id = $1 AND conversation_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return r.queryChatLogs(ctx, query, userID, conversationID, limit, offset)
}

// CountByUser counts logs with the same filter as ListByUser
func (r *ChatLogRepository) CountByUser(ctx context.Context, userID uuid.UUID, conversationID string) (int, error) {
	var count int
	var err error
	executor := GetExecutor(ctx, r.db)

	if conversationID == "" {
		err = executor.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chat_logs WHERE user_id = $1`, userID).Scan(&count)
	} else {
		err = executor.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chat_logs WHERE user_id = $1 AND conversation_id = $2`, userID, conversationID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count chat logs: %w", err)
	}
	return count, nil
}

// ListConversations groups the user's logs by conversation id, most recent first
func (r *ChatLogRepository) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Conversation, error) {
	query := `
		SELECT conversation_id,
		       (ARRAY_AGG(user_message ORDER BY created_at ASC))[1] AS first_message,
		       COUNT(*) AS message_count,
		       MIN(created_at) AS started_at,
		       MAX(created_at) AS last_message_at
		FROM chat_logs
		WHERE user_id = $1 AND conversation_id IS NOT NULL
		GROUP BY conversation_id
		ORDER BY last_message_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c := &models.Conversation{}
		if err := rows.Scan(&c.ConversationID, &c.FirstMessage, &c.MessageCount, &c.StartedAt, &c.LastMessageAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// CountConversations counts distinct conversations of a user
func (r *ChatLogRepository) CountConversations(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(DISTINCT conversation_id) FROM chat_logs WHERE user_id = $1 AND conversation_id IS NOT NULL`

	var count int
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// Delete removes one log owned by userID
func (r *ChatLogRepository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	rows, err := r.exec(ctx, `DELETE FROM chat_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete chat log: %w", err)
	}
	return rows > 0, nil
}

// DeleteByConversation removes all logs of one conversation
func (r *ChatLogRepository) DeleteByConversation(ctx context.Context, userID uuid.UUID, conversationID string) (int64, error) {
	rows, err := r.exec(ctx, `DELETE FROM chat_logs WHERE user_id = $1 AND conversation_id = $2`, userID, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversation: %w", err)
	}
	return rows, nil
}

// DeleteAllByUser removes every log of a user
func (r *ChatLogRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	rows, err := r.exec(ctx, `DELETE FROM chat_logs WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chat logs: %w", err)
	}
	return rows, nil
}

// SetLiked sets the liked flag on a log owned by userID
func (r *ChatLogRepository) SetLiked(ctx context.Context, userID, id uuid.UUID, liked bool) (bool, error) {
	query := `UPDATE chat_logs SET liked = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`

	rows, err := r.exec(ctx, query, id, userID, liked)
	if err != nil {
		return false, fmt.Errorf("failed to update chat log: %w", err)
	}
	return rows > 0, nil
}

// CountSince counts a user's logs created at or after since
func (r *ChatLogRepository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM chat_logs WHERE user_id = $1 AND created_at >= $2`

	var count int
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chat logs: %w", err)
	}
	return count, nil
}

// Summary aggregates usage across all users
func (r *ChatLogRepository) Summary(ctx context.Context, since time.Time) (*repositories.ChatSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(DISTINCT conversation_id),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COUNT(DISTINCT user_id) FILTER (WHERE created_at >= $1)
		FROM chat_logs
	`

	summary := &repositories.ChatSummary{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, since).Scan(
		&summary.TotalChats,
		&summary.Conversations,
		&summary.ChatsSince,
		&summary.ActiveUsersSince,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize chat logs: %w", err)
	}
	return summary, nil
}

func (r *ChatLogRepository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ChatLogRepository) queryChatLogs(ctx context.Context, query string, args ...interface{}) ([]*models.ChatLog, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ChatLog
	for rows.Next() {
		log := &models.ChatLog{}
		var conversationID sql.NullString
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.UserMessage,
			&log.BotReply,
			&conversationID,
			&log.Liked,
			&log.CreatedAt,
			&log.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat log: %w", err)
		}
		if conversationID.Valid {
			log.ConversationID = &conversationID.String
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat logs: %w", err)
	}

	return logs, nil
}
