package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
)

// ErrNotFound is returned (wrapped) by repositories and stores when a record does not exist
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// The context passed to fn carries the transaction, so repository calls made with it join the transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// UpsertLogin atomically creates the user for a new openid, or refreshes the
	// session key, union id and login time of the existing one. user is replaced
	// with the stored row; created reports whether it was inserted.
	UpsertLogin(ctx context.Context, user *models.User) (created bool, err error)

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Count returns the number of registered users
	Count(ctx context.Context) (int, error)
}

// ChatLogRepository handles chat history data operations.
// Every read and write is scoped to the owning user.
type ChatLogRepository interface {
	// Append inserts a new chat log entry
	Append(ctx context.Context, log *models.ChatLog) error

	// ListByUser returns a page of logs, newest first. An empty conversationID lists all conversations.
	ListByUser(ctx context.Context, userID uuid.UUID, conversationID string, limit, offset int) ([]*models.ChatLog, error)

	// CountByUser counts logs with the same filter as ListByUser
	CountByUser(ctx context.Context, userID uuid.UUID, conversationID string) (int, error)

	// ListConversations groups the user's logs by conversation id, most recent first
	ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Conversation, error)

	// CountConversations counts distinct conversations of a user
	CountConversations(ctx context.Context, userID uuid.UUID) (int, error)

	// Delete removes one log. Returns false when no owned log matched.
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)

	// DeleteByConversation removes all logs of one conversation
	DeleteByConversation(ctx context.Context, userID uuid.UUID, conversationID string) (int64, error)

	// DeleteAllByUser removes every log of a user
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// SetLiked sets the liked flag. Returns false when no owned log matched.
	SetLiked(ctx context.Context, userID, id uuid.UUID, liked bool) (bool, error)

	// CountSince counts a user's logs created at or after since
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// Summary aggregates usage across all users
	Summary(ctx context.Context, since time.Time) (*ChatSummary, error)
}

// ChatSummary represents aggregated chat usage
type ChatSummary struct {
	TotalChats       int `json:"total_chats"`
	Conversations    int `json:"conversations"`
	ChatsSince       int `json:"chats_since"`
	ActiveUsersSince int `json:"active_users_since"`
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByUserID retrieves audit logs for a user with pagination
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)

	// CountByAction counts entries of one action recorded at or after since
	CountByAction(ctx context.Context, action models.AuditAction, since time.Time) (int, error)
}

// TokenStore mirrors every live credential in a shared key-value store with a TTL.
// A token without an entry is unusable regardless of its signature.
type TokenStore interface {
	// Put writes the session record for token with the given TTL
	Put(ctx context.Context, token string, record models.SessionRecord, ttl time.Duration) error

	// Get returns the session record for token, or ErrNotFound when absent or expired
	Get(ctx context.Context, token string) (*models.SessionRecord, error)

	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, token string) error
}

// QuotaStore keeps per-subject daily counters.
// Implementations must make Increment a single atomic check-and-increment.
type QuotaStore interface {
	// Increment adds one to the (subject, day) counter unless it already reached limit.
	// It returns the counter value after the call and whether the increment happened.
	Increment(ctx context.Context, subjectID uuid.UUID, day string, limit int) (count int, allowed bool, err error)

	// Current returns the counter for (subject, day), zero when no usage was recorded that day
	Current(ctx context.Context, subjectID uuid.UUID, day string) (int, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users     UserRepository
	ChatLogs  ChatLogRepository
	AuditLogs AuditRepository
}
