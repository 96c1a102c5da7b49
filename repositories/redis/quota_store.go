package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	quotaPrefix = "quota:"

	// counters expire two days after the first increment of their day
	quotaKeyTTL = 48 * time.Hour
)

// incrementScript compares and increments in one server-side step.
// KEYS[1] counter key, ARGV[1] limit, ARGV[2] expiry seconds.
// Returns {allowed, count}.
var incrementScript = goredis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return {0, current}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return {1, current}
`)

// QuotaStore keeps daily counters under quota:<subject>:<day>
type QuotaStore struct {
	client *Client
}

// NewQuotaStore creates a Redis-backed quota store
func NewQuotaStore(client *Client) *QuotaStore {
	return &QuotaStore{client: client}
}

func quotaKey(subjectID uuid.UUID, day string) string {
	return quotaPrefix + subjectID.String() + ":" + day
}

// Increment atomically adds one unless the counter already reached limit
func (s *QuotaStore) Increment(ctx context.Context, subjectID uuid.UUID, day string, limit int) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}

	res, err := incrementScript.Run(ctx, s.client, []string{quotaKey(subjectID, day)},
		limit, int(quotaKeyTTL.Seconds())).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("quota store: increment failed: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("quota store: unexpected script reply %v", res)
	}

	return int(res[1]), res[0] == 1, nil
}

// Current returns the counter for the day, zero when absent
func (s *QuotaStore) Current(ctx context.Context, subjectID uuid.UUID, day string) (int, error) {
	val, err := s.client.Get(ctx, quotaKey(subjectID, day)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota store: failed to read counter: %w", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("quota store: corrupt counter %q: %w", val, err)
	}
	return count, nil
}
