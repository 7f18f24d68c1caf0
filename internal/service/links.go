// Package service implements link creation and resolution on top of the
// code pool, the cache layer and the durable store.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"shortlink/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxURLLength = 2048

// fallbackAttempts bounds inline code generation when the pool is empty.
const fallbackAttempts = 10

// CodePool hands out pre-generated codes.
type CodePool interface {
	Take(ctx context.Context) (string, error)
}

// CodeGenerator mints codes inline when the pool can't serve.
type CodeGenerator interface {
	Generate(at time.Time) (string, error)
}

// LinkCache is the cache contract the link service needs.
type LinkCache interface {
	Set(ctx context.Context, link *domain.ShortLink) error
	Delete(ctx context.Context, code string) error
}

// ClickCounter reads and seeds the live click counters.
type ClickCounter interface {
	Reset(ctx context.Context, code string) error
	Count(ctx context.Context, code string) (int64, error)
	LastClick(ctx context.Context, code string) (time.Time, error)
}

// CreateInput carries the caller-supplied fields of a new link.
type CreateInput struct {
	URL       string
	OwnerID   *string
	ExpiresAt *time.Time
	MaxClicks *int64
}

// ClickStats is the live view of a link's click activity: the Redis
// counter when present, the durable count otherwise.
type ClickStats struct {
	Code          string     `json:"code"`
	ClickCount    int64      `json:"click_count"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
}

// LinkService creates links and reports their click stats.
type LinkService struct {
	links   domain.LinkRepository
	pool    CodePool
	gen     CodeGenerator
	cache   LinkCache
	counter ClickCounter
	log     *zap.Logger
}

// NewLinkService creates a LinkService.
func NewLinkService(
	links domain.LinkRepository,
	pool CodePool,
	gen CodeGenerator,
	cache LinkCache,
	counter ClickCounter,
	logger *zap.Logger,
) *LinkService {
	return &LinkService{
		links:   links,
		pool:    pool,
		gen:     gen,
		cache:   cache,
		counter: counter,
		log:     logger,
	}
}

// Create shortens a URL. The code comes from the pool when one is
// available; otherwise it is generated inline, retrying on collision. The
// store's unique constraint is the final arbiter either way.
func (s *LinkService) Create(ctx context.Context, in CreateInput) (*domain.ShortLink, error) {
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		code, err := s.nextCode(ctx)
		if err != nil {
			return nil, err
		}

		link := &domain.ShortLink{
			ID:          uuid.NewString(),
			OwnerID:     in.OwnerID,
			OriginalURL: in.URL,
			Code:        code,
			IsActive:    true,
			ExpiresAt:   in.ExpiresAt,
			MaxClicks:   in.MaxClicks,
			CreatedAt:   time.Now().UTC(),
		}

		created, err := s.links.Create(ctx, link)
		if errors.Is(err, domain.ErrCodeTaken) {
			// Pooled codes were collision-checked at mint time, so a
			// taken code here means a race with another writer. Try the
			// next code.
			s.log.Warn("code collision on create", zap.String("code", code))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.prime(ctx, created)
		return created, nil
	}

	return nil, fmt.Errorf("%w: %d consecutive collisions", domain.ErrCodeSpaceExhausted, fallbackAttempts)
}

// nextCode prefers the pool, falling back to inline generation when the
// pool is empty or unreachable.
func (s *LinkService) nextCode(ctx context.Context) (string, error) {
	code, err := s.pool.Take(ctx)
	if err != nil {
		s.log.Warn("pool take failed, generating inline", zap.Error(err))
	}
	if code != "" {
		return code, nil
	}

	code, err = s.gen.Generate(time.Now())
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return code, nil
}

// prime warms the cache and seeds the click counter for a fresh link.
// Both are best-effort; the store row is already committed.
func (s *LinkService) prime(ctx context.Context, link *domain.ShortLink) {
	if err := s.cache.Set(ctx, link); err != nil {
		s.log.Warn("cache prime failed", zap.String("code", link.Code), zap.Error(err))
	}
	if err := s.counter.Reset(ctx, link.Code); err != nil {
		s.log.Warn("counter seed failed", zap.String("code", link.Code), zap.Error(err))
	}
}

// Stats returns the live click view for a code. The Redis counter wins
// while its key lives; after expiry the durable count is the floor.
func (s *LinkService) Stats(ctx context.Context, code string) (*ClickStats, error) {
	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	stats := &ClickStats{
		Code:          link.Code,
		ClickCount:    link.ClickCount,
		LastClickedAt: link.LastClickedAt,
	}

	if live, err := s.counter.Count(ctx, code); err != nil {
		s.log.Warn("live count read failed", zap.String("code", code), zap.Error(err))
	} else if live > stats.ClickCount {
		stats.ClickCount = live
	}

	if at, err := s.counter.LastClick(ctx, code); err != nil {
		s.log.Warn("last click read failed", zap.String("code", code), zap.Error(err))
	} else if !at.IsZero() {
		stats.LastClickedAt = &at
	}

	return stats, nil
}

// validateURL accepts absolute http/https URLs with a host, within the
// length cap. Everything else is ErrInvalidURL.
func validateURL(raw string) error {
	if raw == "" || len(raw) > maxURLLength {
		return domain.ErrInvalidURL
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return domain.ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.ErrInvalidURL
	}
	if u.Host == "" {
		return domain.ErrInvalidURL
	}
	return nil
}
