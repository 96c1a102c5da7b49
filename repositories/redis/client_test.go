package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/minichat-gateway/config"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	t.Run("addr", func(t *testing.T) {
		client, err := New(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}, zap.NewNop())
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("url", func(t *testing.T) {
		client, err := New(config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}, zap.NewNop())
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := New(config.RedisConfig{URL: "http://nope"}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestClient_HealthCheckFailure(t *testing.T) {
	client, mr := newTestClient(t)
	mr.SetError("LOADING")

	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
}
