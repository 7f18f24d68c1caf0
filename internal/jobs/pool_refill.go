package jobs

import (
	"context"
	"fmt"
	"time"

	"shortlink/internal/domain"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// overGenerationFactor controls how many candidates each inner batch mints
// relative to the codes it still needs, absorbing expected collisions.
const overGenerationFactor = 2

// maxEmptyBatches bounds consecutive all-collision batches before the
// refill gives up. Code-space exhaustion beyond this is deliberately
// unhandled.
const maxEmptyBatches = 3

// Generator mints candidate codes.
type Generator interface {
	GenerateBatch(n int) ([]string, error)
}

// PoolWriter is the pool-store contract the refiller needs.
type PoolWriter interface {
	Add(ctx context.Context, codes []string) error
	Size(ctx context.Context) (int64, error)
	Unlock(ctx context.Context) error
}

// RefillConfig sizes refill runs.
type RefillConfig struct {
	MaxSize      int64
	BatchSize    int
	EmptyBackoff time.Duration
}

// PoolRefiller fills the code pool back up to its maximum size, checking
// every candidate against the durable store and discarding collisions.
// Runs on a single-worker queue so collision checks never race each other
// within one deployment.
type PoolRefiller struct {
	gen   Generator
	links domain.LinkRepository
	pool  PoolWriter
	cfg   RefillConfig
	log   *zap.Logger
}

// NewPoolRefiller creates a PoolRefiller.
func NewPoolRefiller(gen Generator, links domain.LinkRepository, pool PoolWriter, cfg RefillConfig, logger *zap.Logger) *PoolRefiller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.EmptyBackoff <= 0 {
		cfg.EmptyBackoff = time.Second
	}
	return &PoolRefiller{gen: gen, links: links, pool: pool, cfg: cfg, log: logger}
}

// Handle runs one refill. The refill lock taken by the pool manager is
// released on the way out so the next depletion can trigger immediately;
// its expiry covers a crash mid-refill.
func (r *PoolRefiller) Handle(ctx context.Context, _ []byte) error {
	defer func() {
		if err := r.pool.Unlock(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("refill lock release failed", zap.Error(err))
		}
	}()

	size, err := r.pool.Size(ctx)
	if err != nil {
		return fmt.Errorf("pool size: %w", err)
	}
	deficit := r.cfg.MaxSize - size
	if deficit <= 0 {
		r.log.Debug("pool already full", zap.Int64("size", size))
		return nil
	}

	r.log.Info("refilling code pool",
		zap.Int64("size", size), zap.Int64("deficit", deficit))

	var added int64
	emptyBatches := 0
	for added < deficit {
		if err := ctx.Err(); err != nil {
			return err
		}

		need := int(min64(int64(r.cfg.BatchSize), deficit-added))
		survivors, err := r.uniqueBatch(ctx, need)
		if err != nil {
			return err
		}

		if len(survivors) == 0 {
			emptyBatches++
			if emptyBatches >= maxEmptyBatches {
				r.log.Error("giving up refill: repeated all-collision batches",
					zap.Int64("added", added), zap.Int64("deficit", deficit))
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.EmptyBackoff):
			}
			continue
		}
		emptyBatches = 0

		if err := r.pool.Add(ctx, survivors); err != nil {
			return fmt.Errorf("pool add: %w", err)
		}
		added += int64(len(survivors))
	}

	r.log.Info("code pool refilled", zap.Int64("added", added))
	return nil
}

// uniqueBatch over-generates candidates, de-duplicates them and drops every
// code already assigned in the store. The result may be shorter than need;
// the caller loops.
func (r *PoolRefiller) uniqueBatch(ctx context.Context, need int) ([]string, error) {
	candidates, err := r.gen.GenerateBatch(need * overGenerationFactor)
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}
	candidates = lo.Uniq(candidates)

	taken, err := r.links.CodesInUse(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("collision check: %w", err)
	}

	survivors := lo.Filter(candidates, func(code string, _ int) bool {
		return !taken[code]
	})
	if len(survivors) > need {
		survivors = survivors[:need]
	}
	return survivors, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
