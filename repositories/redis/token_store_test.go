package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
)

func TestTokenStore_PutGet(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	record := models.SessionRecord{UserID: "u-1", OpenID: "o-1", Type: models.SessionTypeUser}
	require.NoError(t, store.Put(ctx, "jwt-a", record, time.Hour))

	raw, err := mr.Get("token:jwt-a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u-1","openid":"o-1","type":"user"}`, raw)
	assert.Equal(t, time.Hour, mr.TTL("token:jwt-a"))

	got, err := store.Get(ctx, "jwt-a")
	require.NoError(t, err)
	assert.Equal(t, record, *got)
}

func TestTokenStore_Expiry(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jwt-a", models.SessionRecord{UserID: "u"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "jwt-a")
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestTokenStore_Delete(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jwt-a", models.SessionRecord{UserID: "u"}, time.Minute))
	require.NoError(t, store.Delete(ctx, "jwt-a"))
	require.NoError(t, store.Delete(ctx, "jwt-a"))

	_, err := store.Get(ctx, "jwt-a")
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestTokenStore_Errors(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, "", models.SessionRecord{}, time.Minute))
	assert.Error(t, store.Put(ctx, "jwt", models.SessionRecord{}, 0))

	require.NoError(t, mr.Set("token:garbage", "not-json"))
	_, err := store.Get(ctx, "garbage")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, repositories.ErrNotFound))

	mr.SetError("READONLY")
	_, err = store.Get(ctx, "jwt")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, repositories.ErrNotFound))
}
