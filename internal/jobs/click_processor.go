// Package jobs holds the background job handlers run by the queue layer:
// click processing, pool refill and link deactivation.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shortlink/internal/analytics"
	"shortlink/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue names handled by this package.
const (
	QueueClicks     = "clicks.process"
	QueueLinkUpdate = "links.update"
)

// Enqueuer submits follow-up background jobs.
type Enqueuer interface {
	Enqueue(queue string, payload any) error
}

// Counter is the click-counter contract the processor needs.
type Counter interface {
	Increment(ctx context.Context, code string) (int64, error)
	TouchLastClick(ctx context.Context, code string, at time.Time) error
}

// CacheWriter refreshes link snapshots in the cache.
type CacheWriter interface {
	Set(ctx context.Context, link *domain.ShortLink) error
	Delete(ctx context.Context, code string) error
}

// ClickJob is the payload enqueued by the resolver on every resolution.
// It carries the already-fetched snapshot so processing never needs a
// second store round trip for the link itself.
type ClickJob struct {
	Code string            `json:"code"`
	Raw  domain.RawRequest `json:"raw"`
	Link *domain.ShortLink `json:"link"`
}

// ClickProcessor turns click jobs into counter increments, coalesced
// durable syncs and click-log rows.
type ClickProcessor struct {
	counter   Counter
	links     domain.LinkRepository
	clickLogs domain.ClickLogRepository
	cache     CacheWriter
	jobs      Enqueuer
	syncEvery int64
	log       *zap.Logger
}

// NewClickProcessor creates a ClickProcessor. syncEvery is the modulo-N
// threshold for durable syncs.
func NewClickProcessor(
	counter Counter,
	links domain.LinkRepository,
	clickLogs domain.ClickLogRepository,
	cache CacheWriter,
	jobs Enqueuer,
	syncEvery int64,
	logger *zap.Logger,
) *ClickProcessor {
	if syncEvery <= 0 {
		syncEvery = 10
	}
	return &ClickProcessor{
		counter:   counter,
		links:     links,
		clickLogs: clickLogs,
		cache:     cache,
		jobs:      jobs,
		syncEvery: syncEvery,
		log:       logger,
	}
}

// Handle processes one click job. The counter increment comes first;
// whatever fails afterwards, the last-click timestamp is still refreshed
// best-effort before the error surfaces to the queue's retry mechanism.
func (p *ClickProcessor) Handle(ctx context.Context, payload []byte) error {
	var job ClickJob
	if err := json.Unmarshal(payload, &job); err != nil {
		// A payload that can't be decoded will never succeed; drop it.
		p.log.Error("undecodable click job", zap.Error(err))
		return nil
	}
	if job.Link == nil || job.Link.ID == "" {
		p.log.Warn("click job without link snapshot", zap.String("code", job.Code))
		return nil
	}

	now := time.Now().UTC()

	count, err := p.counter.Increment(ctx, job.Code)
	if err != nil {
		return fmt.Errorf("increment clicks for %s: %w", job.Code, err)
	}

	if err := p.process(ctx, &job, count, now); err != nil {
		if terr := p.counter.TouchLastClick(ctx, job.Code, now); terr != nil {
			p.log.Warn("best-effort last-click update failed",
				zap.String("code", job.Code), zap.Error(terr))
		}
		return err
	}

	if err := p.counter.TouchLastClick(ctx, job.Code, now); err != nil {
		p.log.Warn("last-click update failed", zap.String("code", job.Code), zap.Error(err))
	}
	return nil
}

func (p *ClickProcessor) process(ctx context.Context, job *ClickJob, count int64, now time.Time) error {
	// Coalesced durable sync: every Nth click overwrites
	// clickCount/lastClickedAt in the store and refreshes the cached
	// snapshot. Two workers racing on a multiple of N both overwrite with
	// the same values, so the double sync is harmless.
	if count%p.syncEvery == 0 {
		link := *job.Link
		link.ClickCount = count
		link.LastClickedAt = &now

		if err := p.links.Update(ctx, &link); err != nil {
			return fmt.Errorf("sync clicks for %s: %w", job.Code, err)
		}
		if err := p.cache.Set(ctx, &link); err != nil {
			p.log.Warn("cache refresh after sync failed",
				zap.String("code", job.Code), zap.Error(err))
		}
		p.log.Debug("click count synced",
			zap.String("code", job.Code), zap.Int64("count", count))
	}

	// Checked on every increment, not just sync ticks: a budget that is
	// not a multiple of the sync interval must still deactivate on the
	// crossing click. The deactivator is idempotent, so clicks landing
	// between the crossing and the switch-off enqueue harmlessly again.
	if job.Link.MaxClicks != nil && count >= *job.Link.MaxClicks {
		p.enqueueDeactivation(job.Code, "max clicks reached")
	}

	clickLog := &domain.ClickLog{
		ID:        uuid.NewString(),
		LinkID:    job.Link.ID,
		ClickedAt: now,
	}
	analytics.Extract(job.Raw).Apply(clickLog)

	if err := p.clickLogs.Create(ctx, clickLog); err != nil {
		return fmt.Errorf("persist click log for %s: %w", job.Code, err)
	}
	return nil
}

func (p *ClickProcessor) enqueueDeactivation(code, reason string) {
	err := p.jobs.Enqueue(QueueLinkUpdate, DeactivateJob{Code: code, Reason: reason})
	if err != nil {
		p.log.Warn("deactivation enqueue failed",
			zap.String("code", code), zap.Error(err))
	}
}
