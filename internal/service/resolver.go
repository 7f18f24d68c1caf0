package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/jobs"
	"shortlink/internal/shortcode"

	"go.uber.org/zap"
)

// ResolverCache is the cache contract resolution needs: snapshot reads and
// writes plus the negative tombstones.
type ResolverCache interface {
	Get(ctx context.Context, code string) (*domain.ShortLink, bool, error)
	Set(ctx context.Context, link *domain.ShortLink) error
	SetNotFound(ctx context.Context, code string) error
	IsNotFound(ctx context.Context, code string) (bool, error)
}

// Enqueuer submits background jobs.
type Enqueuer interface {
	Enqueue(queue string, payload any) error
}

// Resolver maps short codes to destination URLs: negative cache, then
// positive cache, then durable store, recording a click job on every
// successful resolution.
type Resolver struct {
	links domain.LinkRepository
	cache ResolverCache
	jobs  Enqueuer
	log   *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(links domain.LinkRepository, cache ResolverCache, jobsq Enqueuer, logger *zap.Logger) *Resolver {
	return &Resolver{links: links, cache: cache, jobs: jobsq, log: logger}
}

// Resolve returns the destination URL for a code. Codes that are unknown,
// inactive, expired or exhausted all resolve to ErrLinkNotFound; callers
// never learn which.
func (r *Resolver) Resolve(ctx context.Context, code string, raw domain.RawRequest) (string, error) {
	// Malformed codes can't exist, so skip every round trip for them.
	if !shortcode.Validate(code) {
		return "", domain.ErrLinkNotFound
	}

	now := time.Now().UTC()

	tombstoned, err := r.cache.IsNotFound(ctx, code)
	if err != nil {
		r.log.Warn("negative cache unavailable", zap.String("code", code), zap.Error(err))
		return r.resolveDirect(ctx, code, raw, now)
	}
	if tombstoned {
		return "", domain.ErrLinkNotFound
	}

	link, hit, err := r.cache.Get(ctx, code)
	if err != nil {
		r.log.Warn("link cache unavailable", zap.String("code", code), zap.Error(err))
		return r.resolveDirect(ctx, code, raw, now)
	}
	if hit {
		if !link.Resolvable(now) {
			// A stale cached snapshot isn't proof of absence, so no
			// tombstone is written here. Expiry does warrant switching
			// the link off durably.
			r.maybeDeactivate(link, now)
			return "", domain.ErrLinkNotFound
		}
		r.recordClick(code, raw, link)
		return link.OriginalURL, nil
	}

	link, err = r.links.FindByCode(ctx, code)
	if errors.Is(err, domain.ErrLinkNotFound) {
		r.tombstone(ctx, code)
		return "", domain.ErrLinkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", code, err)
	}

	if !link.Resolvable(now) {
		// The store said so, which is authoritative: tombstone it.
		r.tombstone(ctx, code)
		r.maybeDeactivate(link, now)
		return "", domain.ErrLinkNotFound
	}

	if err := r.cache.Set(ctx, link); err != nil {
		r.log.Warn("cache fill failed", zap.String("code", code), zap.Error(err))
	}
	r.recordClick(code, raw, link)
	return link.OriginalURL, nil
}

// resolveDirect serves a resolution straight from the durable store while
// the cache is unreachable. No cache writes are attempted.
func (r *Resolver) resolveDirect(ctx context.Context, code string, raw domain.RawRequest, now time.Time) (string, error) {
	link, err := r.links.FindByCode(ctx, code)
	if errors.Is(err, domain.ErrLinkNotFound) {
		return "", domain.ErrLinkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", code, err)
	}
	if !link.Resolvable(now) {
		r.maybeDeactivate(link, now)
		return "", domain.ErrLinkNotFound
	}
	r.recordClick(code, raw, link)
	return link.OriginalURL, nil
}

// recordClick enqueues the telemetry job for a served redirect. A full
// queue drops the click; redirect latency never pays for analytics.
func (r *Resolver) recordClick(code string, raw domain.RawRequest, link *domain.ShortLink) {
	err := r.jobs.Enqueue(jobs.QueueClicks, jobs.ClickJob{Code: code, Raw: raw, Link: link})
	if err != nil {
		r.log.Warn("click job dropped", zap.String("code", code), zap.Error(err))
	}
}

func (r *Resolver) tombstone(ctx context.Context, code string) {
	if err := r.cache.SetNotFound(ctx, code); err != nil {
		r.log.Warn("tombstone write failed", zap.String("code", code), zap.Error(err))
	}
}

// maybeDeactivate queues a durable switch-off for links that became
// unresolvable on their own: expiry passed or click budget spent.
func (r *Resolver) maybeDeactivate(link *domain.ShortLink, now time.Time) {
	if !link.IsActive {
		return
	}
	reason := ""
	switch {
	case link.Expired(now):
		reason = "expired"
	case link.Exhausted():
		reason = "max clicks reached"
	default:
		return
	}
	err := r.jobs.Enqueue(jobs.QueueLinkUpdate, jobs.DeactivateJob{Code: link.Code, Reason: reason})
	if err != nil {
		r.log.Warn("deactivation enqueue failed", zap.String("code", link.Code), zap.Error(err))
	}
}
