package pool

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	poolKey       = "shortcode_pool"
	refillLockKey = "shortcode_pool_refill_lock"
)

// Compile-time interface check
var _ Store = (*RedisStore)(nil)

// RedisStore keeps the code pool in a shared Redis list so every process
// instance draws from the same reservoir.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Redis-backed pool store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Take pops from the front of the list; "" when the pool is empty.
func (s *RedisStore) Take(ctx context.Context) (string, error) {
	code, err := s.rdb.LPop(ctx, poolKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// Add appends codes to the back of the list.
func (s *RedisStore) Add(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	vals := make([]interface{}, len(codes))
	for i, c := range codes {
		vals[i] = c
	}
	return s.rdb.RPush(ctx, poolKey, vals...).Err()
}

// Size returns the list length.
func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, poolKey).Result()
}

// TryLock acquires the refill lock via SET NX EX. The expiry keeps refill
// triggering live if the holder crashes.
func (s *RedisStore) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, refillLockKey, "1", ttl).Result()
}

// Unlock releases the refill lock.
func (s *RedisStore) Unlock(ctx context.Context) error {
	return s.rdb.Del(ctx, refillLockKey).Err()
}
