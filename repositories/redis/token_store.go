package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
)

const tokenPrefix = "token:"

// TokenStore keeps one JSON session record per live token under token:<jwt>
type TokenStore struct {
	client *Client
}

// NewTokenStore creates a Redis-backed token store
func NewTokenStore(client *Client) *TokenStore {
	return &TokenStore{client: client}
}

func (s *TokenStore) key(token string) string {
	return tokenPrefix + token
}

// Put writes the record with the given TTL, replacing any previous value
func (s *TokenStore) Put(ctx context.Context, token string, record models.SessionRecord, ttl time.Duration) error {
	if token == "" {
		return fmt.Errorf("token store: empty token")
	}
	if ttl <= 0 {
		return fmt.Errorf("token store: ttl must be positive")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("token store: failed to marshal: %w", err)
	}

	if err := s.client.Set(ctx, s.key(token), data, ttl).Err(); err != nil {
		return fmt.Errorf("token store: failed to set: %w", err)
	}
	return nil
}

// Get returns the record, or repositories.ErrNotFound when absent or expired
func (s *TokenStore) Get(ctx context.Context, token string) (*models.SessionRecord, error) {
	val, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("token store: failed to get: %w", err)
	}

	var record models.SessionRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("token store: failed to unmarshal: %w", err)
	}
	return &record, nil
}

// Delete removes the entry; missing keys are not an error
func (s *TokenStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("token store: failed to delete: %w", err)
	}
	return nil
}
