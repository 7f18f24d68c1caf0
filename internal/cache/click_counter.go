package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clickCountKeyPrefix = "clicks:"
	lastClickKeyPrefix  = "lastclick:"
)

// ClickCounter tracks per-code click counts and last-click timestamps in
// Redis. Increments are atomic; counts reconcile into the durable store via
// the click processor's modulo-N sync.
type ClickCounter struct {
	rdb      *redis.Client
	countTTL time.Duration
}

// NewClickCounter creates a ClickCounter; countTTL bounds counter and
// last-click key lifetimes.
func NewClickCounter(rdb *redis.Client, countTTL time.Duration) *ClickCounter {
	return &ClickCounter{rdb: rdb, countTTL: countTTL}
}

func clickCountKey(code string) string { return clickCountKeyPrefix + code }
func lastClickKey(code string) string  { return lastClickKeyPrefix + code }

// Increment atomically bumps the counter for a code and returns the new
// value.
func (c *ClickCounter) Increment(ctx context.Context, code string) (int64, error) {
	n, err := c.rdb.Incr(ctx, clickCountKey(code)).Result()
	if err != nil {
		return 0, fmt.Errorf("click counter incr: %w", err)
	}
	return n, nil
}

// Reset seeds the counter at zero with the configured TTL. Called when a
// link is created so its first redirects find a live key.
func (c *ClickCounter) Reset(ctx context.Context, code string) error {
	return c.rdb.Set(ctx, clickCountKey(code), "0", c.countTTL).Err()
}

// Count returns the live counter value, zero when the key is absent.
func (c *ClickCounter) Count(ctx context.Context, code string) (int64, error) {
	val, err := c.rdb.Get(ctx, clickCountKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("click counter get: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}

// TouchLastClick records the most recent click time for a code.
func (c *ClickCounter) TouchLastClick(ctx context.Context, code string, at time.Time) error {
	return c.rdb.Set(ctx, lastClickKey(code), strconv.FormatInt(at.UnixMilli(), 10), c.countTTL).Err()
}

// LastClick returns the last recorded click time, zero time when absent.
func (c *ClickCounter) LastClick(ctx context.Context, code string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, lastClickKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last click get: %w", err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last click: %w", err)
	}
	return time.UnixMilli(ms), nil
}
