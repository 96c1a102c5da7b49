package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQuotaStore_Increment(t *testing.T) {
	ctx := context.Background()
	subject := uuid.New()
	day := "2026-10-18"

	t.Run("increment allowed", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewQuotaStore(db, zap.NewNop())

		mock.ExpectQuery("INSERT INTO user_stats").
			WithArgs(subject.String(), day, 100).
			WillReturnRows(sqlmock.NewRows([]string{"daily_chat_count"}).AddRow(1))

		count, allowed, err := store.Increment(ctx, subject, day, 100)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit reached returns current count without incrementing", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewQuotaStore(db, zap.NewNop())

		mock.ExpectQuery("INSERT INTO user_stats").
			WithArgs(subject.String(), day, 100).
			WillReturnRows(sqlmock.NewRows([]string{"daily_chat_count"}))
		mock.ExpectQuery("SELECT CASE WHEN last_chat_date").
			WithArgs(subject.String(), day).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(100))

		count, allowed, err := store.Increment(ctx, subject, day, 100)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 100, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive limit never touches the database", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewQuotaStore(db, zap.NewNop())

		count, allowed, err := store.Increment(ctx, subject, day, 0)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewQuotaStore(db, zap.NewNop())

		mock.ExpectQuery("INSERT INTO user_stats").WillReturnError(assert.AnError)

		_, _, err := store.Increment(ctx, subject, day, 100)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestQuotaStore_Current(t *testing.T) {
	ctx := context.Background()
	subject := uuid.New()

	t.Run("no stats row", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewQuotaStore(db, zap.NewNop())

		mock.ExpectQuery("SELECT CASE WHEN last_chat_date").
			WillReturnRows(sqlmock.NewRows([]string{"count"}))

		count, err := store.Current(ctx, subject, "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("stats row", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewQuotaStore(db, zap.NewNop())

		mock.ExpectQuery("SELECT CASE WHEN last_chat_date").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

		count, err := store.Current(ctx, subject, "2026-10-18")
		require.NoError(t, err)
		assert.Equal(t, 12, count)
	})
}
