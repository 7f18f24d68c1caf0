package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shortlink/internal/domain"

	"go.uber.org/zap"
)

// DeactivateJob asks for a link to be switched off, typically after its
// expiry passed or its click budget ran out.
type DeactivateJob struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// LinkDeactivator is the auxiliary update worker: it flips links inactive
// in the durable store and drops their cache entries. Idempotent, so queue
// redeliveries are safe.
type LinkDeactivator struct {
	links domain.LinkRepository
	cache CacheWriter
	log   *zap.Logger
}

// NewLinkDeactivator creates a LinkDeactivator.
func NewLinkDeactivator(links domain.LinkRepository, cache CacheWriter, logger *zap.Logger) *LinkDeactivator {
	return &LinkDeactivator{links: links, cache: cache, log: logger}
}

// Handle deactivates the link named by the job.
func (d *LinkDeactivator) Handle(ctx context.Context, payload []byte) error {
	var job DeactivateJob
	if err := json.Unmarshal(payload, &job); err != nil {
		d.log.Error("undecodable deactivation job", zap.Error(err))
		return nil
	}

	link, err := d.links.FindByCode(ctx, job.Code)
	if errors.Is(err, domain.ErrLinkNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load link %s: %w", job.Code, err)
	}
	if !link.IsActive {
		return nil
	}

	link.IsActive = false
	if err := d.links.Update(ctx, link); err != nil {
		return fmt.Errorf("deactivate link %s: %w", job.Code, err)
	}
	if err := d.cache.Delete(ctx, job.Code); err != nil {
		d.log.Warn("cache drop after deactivation failed",
			zap.String("code", job.Code), zap.Error(err))
	}

	d.log.Info("link deactivated",
		zap.String("code", job.Code), zap.String("reason", job.Reason))
	return nil
}
