// Package cache holds the Redis-backed cache primitives shared by all
// process instances: link snapshots, not-found tombstones and click
// counters.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shortlink/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	linkKeyPrefix     = "url:"
	notFoundKeyPrefix = "notfound:"
)

// LinkCache caches link snapshots positively and known-absent codes
// negatively. A positive write supersedes any tombstone for the same code;
// the two are never both present.
type LinkCache struct {
	rdb         *redis.Client
	linkTTL     time.Duration
	notFoundTTL time.Duration
	log         *zap.Logger
}

// NewLinkCache creates a LinkCache with the given TTLs.
func NewLinkCache(rdb *redis.Client, linkTTL, notFoundTTL time.Duration, logger *zap.Logger) *LinkCache {
	return &LinkCache{
		rdb:         rdb,
		linkTTL:     linkTTL,
		notFoundTTL: notFoundTTL,
		log:         logger,
	}
}

func linkKey(code string) string     { return linkKeyPrefix + code }
func notFoundKey(code string) string { return notFoundKeyPrefix + code }

// Get returns the cached snapshot for a code. A miss is (nil, false, nil);
// transport errors are returned so the resolver can fall back to the store.
func (c *LinkCache) Get(ctx context.Context, code string) (*domain.ShortLink, bool, error) {
	data, err := c.rdb.Get(ctx, linkKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("link cache get: %w", err)
	}

	var link domain.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		// A corrupt entry is a miss; the store is the source of truth.
		c.log.Warn("corrupt link cache entry", zap.String("code", code), zap.Error(err))
		return nil, false, nil
	}
	return &link, true, nil
}

// Set writes a link snapshot and deletes any tombstone for the code in the
// same pipeline.
func (c *LinkCache) Set(ctx context.Context, link *domain.ShortLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal link snapshot: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, linkKey(link.Code), data, c.linkTTL)
	pipe.Del(ctx, notFoundKey(link.Code))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("link cache set: %w", err)
	}
	return nil
}

// Delete drops the snapshot for a code.
func (c *LinkCache) Delete(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, linkKey(code)).Err()
}

// SetNotFound writes a tombstone recording the code as known absent.
func (c *LinkCache) SetNotFound(ctx context.Context, code string) error {
	return c.rdb.Set(ctx, notFoundKey(code), "1", c.notFoundTTL).Err()
}

// IsNotFound reports whether a tombstone exists for the code.
func (c *LinkCache) IsNotFound(ctx context.Context, code string) (bool, error) {
	_, err := c.rdb.Get(ctx, notFoundKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("notfound cache get: %w", err)
	}
	return true, nil
}
