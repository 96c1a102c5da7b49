package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, openid, union_id, session_key, nickname, avatar_url, status, role, last_login_at, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertLogin records a login in a single statement. An unknown openid inserts user as given;
// a known one keeps its id, role and status and only takes the new session key, union id
// and login time. user is overwritten with the stored row.
func (r *UserRepository) UpsertLogin(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (openid) DO UPDATE SET
			session_key = EXCLUDED.session_key,
			union_id = COALESCE(EXCLUDED.union_id, users.union_id),
			last_login_at = EXCLUDED.last_login_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var inserted bool
	stored, err := r.scanOne(GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		user.ID,
		user.OpenID,
		user.UnionID,
		user.SessionKey,
		user.Nickname,
		user.AvatarURL,
		user.Status,
		user.Role,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	), &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}
	*user = *stored

	r.logger.Debug("user login recorded",
		zap.String("id", user.ID.String()),
		zap.Bool("created", inserted))
	return inserted, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := r.scanOne(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Count returns the number of registered users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// scanOne reads userColumns followed by any extra destinations
func (r *UserRepository) scanOne(row *sql.Row, extra ...interface{}) (*models.User, error) {
	user := &models.User{}
	dest := []interface{}{
		&user.ID,
		&user.OpenID,
		&user.UnionID,
		&user.SessionKey,
		&user.Nickname,
		&user.AvatarURL,
		&user.Status,
		&user.Role,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return user, nil
}
