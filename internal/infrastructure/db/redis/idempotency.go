package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers grant idempotency keys in Redis.
// Key format: grant:<scope>:<account_id>:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client. Keys expire after ttl, or after
// defaultIdempotencyTTL when ttl is not positive.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim atomically records the key and reports whether this call was the
// first to do so.
func (s *IdempotencyStore) Claim(ctx context.Context, scope string, accountID int64, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(scope, accountID, key), time.Now().UTC().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

// Release deletes a claim so the grant can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, scope string, accountID int64, key string) error {
	if err := s.client.Del(ctx, s.key(scope, accountID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(scope string, accountID int64, key string) string {
	return fmt.Sprintf("grant:%s:%d:%s", scope, accountID, key)
}
