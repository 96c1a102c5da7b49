package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/minichat-gateway/repositories"
)

type txKey struct{}

// fakeTxManager runs fn with a marked context and records the outcome
type fakeTxManager struct {
	beginErr   error
	commitErr  error
	committed  bool
	rolledBack bool
}

type fakeTx struct{ ctx context.Context }

func (t *fakeTx) Commit() error            { return nil }
func (t *fakeTx) Rollback() error          { return nil }
func (t *fakeTx) Context() context.Context { return t.ctx }

func (m *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &fakeTx{ctx: context.WithValue(ctx, txKey{}, true)}, nil
}

func (m *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx.Context(), tx); err != nil {
		m.rolledBack = true
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("fn receives the transaction context and commits", func(t *testing.T) {
		txMgr := &fakeTxManager{}
		var sawTx bool

		err := WithTransaction(ctx, txMgr, func(ctx context.Context) error {
			sawTx, _ = ctx.Value(txKey{}).(bool)
			return nil
		})

		require.NoError(t, err)
		assert.True(t, sawTx)
		assert.True(t, txMgr.committed)
	})

	t.Run("error rolls back", func(t *testing.T) {
		txMgr := &fakeTxManager{}
		expectedErr := errors.New("operation failed")

		err := WithTransaction(ctx, txMgr, func(ctx context.Context) error {
			return expectedErr
		})

		assert.Equal(t, expectedErr, err)
		assert.True(t, txMgr.rolledBack)
		assert.False(t, txMgr.committed)
	})

	t.Run("begin error", func(t *testing.T) {
		txMgr := &fakeTxManager{beginErr: errors.New("failed to begin transaction")}
		called := false

		err := WithTransaction(ctx, txMgr, func(ctx context.Context) error {
			called = true
			return nil
		})

		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestWithTransactionResult(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		txMgr := &fakeTxManager{}

		result, err := WithTransactionResult(ctx, txMgr, func(ctx context.Context) (string, error) {
			return "success", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.True(t, txMgr.committed)
	})

	t.Run("error in function", func(t *testing.T) {
		txMgr := &fakeTxManager{}

		result, err := WithTransactionResult(ctx, txMgr, func(ctx context.Context) (string, error) {
			return "partial", errors.New("operation failed")
		})

		assert.Error(t, err)
		assert.Equal(t, "", result)
		assert.True(t, txMgr.rolledBack)
	})

	t.Run("commit error discards the result", func(t *testing.T) {
		txMgr := &fakeTxManager{commitErr: errors.New("commit failed")}

		result, err := WithTransactionResult(ctx, txMgr, func(ctx context.Context) (int, error) {
			return 42, nil
		})

		assert.EqualError(t, err, "commit failed")
		assert.Equal(t, 0, result)
	})
}
