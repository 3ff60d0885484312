package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const boostSpamPrefix = "boost_spam:"

// BoostSpamRepo holds the rolling 24-hour boost-notification counters.
// A counter key is created with the window TTL on its first increment
// and left to expire; a send after expiry starts a fresh window at 1.
type BoostSpamRepo struct {
	client *goredis.Client
	window time.Duration
}

func NewBoostSpamRepo(client *goredis.Client, window time.Duration) *BoostSpamRepo {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &BoostSpamRepo{client: client, window: window}
}

func (r *BoostSpamRepo) Count(ctx context.Context, userID int64) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	count, err := r.client.Get(ctx, boostSpamKey(userID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get boost spam count: %w", err)
	}

	return count, nil
}

// Record increments the user's window counter and returns the new
// count. The TTL is attached only when the key is created so the
// window measures from the first notification, not the latest.
func (r *BoostSpamRepo) Record(ctx context.Context, userID int64) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	key := boostSpamKey(userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment boost spam count: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return 0, fmt.Errorf("set boost spam ttl: %w", err)
		}
	}

	return count, nil
}

func boostSpamKey(userID int64) string {
	return fmt.Sprintf("%s%d", boostSpamPrefix, userID)
}
