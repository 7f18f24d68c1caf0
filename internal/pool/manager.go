// Package pool manages the shared reservoir of pre-validated short codes.
package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// QueueRefill is the queue the manager enqueues refill jobs on.
const QueueRefill = "pool.refill"

// Store is the shared-list backend for the code pool. All operations are
// single-key and atomic; TryLock is set-if-absent-with-expiry.
type Store interface {
	// Take pops one code from the front of the pool; "" when empty.
	Take(ctx context.Context) (string, error)
	// Add appends codes to the back of the pool.
	Add(ctx context.Context, codes []string) error
	// Size returns the current pool length.
	Size(ctx context.Context) (int64, error)
	// TryLock acquires the refill lock if absent, with the given expiry.
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	// Unlock releases the refill lock.
	Unlock(ctx context.Context) error
}

// Enqueuer submits background jobs.
type Enqueuer interface {
	Enqueue(queue string, payload any) error
}

// Config tunes pool sizing and refill triggering. Refill batch sizing
// lives with the refill job itself.
type Config struct {
	MinThreshold int64
	MaxSize      int64
	LockTTL      time.Duration
}

// RefillJob is the (empty) payload of a refill job; sizing comes from the
// refiller's own config so a stale job can never overfill the pool.
type RefillJob struct{}

// Manager hands out codes from the shared pool and triggers asynchronous
// refills when it runs low. One logical instance per process; the refill
// lock in the store gives cross-instance exclusivity.
type Manager struct {
	store Store
	jobs  Enqueuer
	cfg   Config
	log   *zap.Logger

	// checking collapses concurrent depletion checks into one in-flight
	// goroutine per process; the lock still dedupes across processes.
	checking atomic.Bool
}

// NewManager creates a pool manager.
func NewManager(store Store, jobs Enqueuer, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{store: store, jobs: jobs, cfg: cfg, log: logger}
}

// Take pops one code from the pool, "" when the pool is empty. After every
// pop the depletion check runs asynchronously so the caller never waits on
// pool bookkeeping.
func (m *Manager) Take(ctx context.Context) (string, error) {
	code, err := m.store.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("pool take: %w", err)
	}

	if m.checking.CompareAndSwap(false, true) {
		go func() {
			defer m.checking.Store(false)
			// Detached from the request context: the check must outlive
			// the redirect that triggered it.
			checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.checkAndTriggerRefill(checkCtx)
		}()
	}

	return code, nil
}

// Stats reports the current pool level.
func (m *Manager) Stats(ctx context.Context) (size int64, low bool, err error) {
	size, err = m.store.Size(ctx)
	if err != nil {
		return 0, false, err
	}
	return size, size <= m.cfg.MinThreshold, nil
}

func (m *Manager) checkAndTriggerRefill(ctx context.Context) {
	size, err := m.store.Size(ctx)
	if err != nil {
		m.log.Warn("pool size check failed", zap.Error(err))
		return
	}
	if size > m.cfg.MinThreshold {
		return
	}

	locked, err := m.store.TryLock(ctx, m.cfg.LockTTL)
	if err != nil {
		m.log.Warn("refill lock acquire failed", zap.Error(err))
		return
	}
	if !locked {
		// Another instance is already refilling.
		return
	}

	m.log.Info("code pool low, triggering refill",
		zap.Int64("size", size),
		zap.Int64("min_threshold", m.cfg.MinThreshold))

	if err := m.jobs.Enqueue(QueueRefill, RefillJob{}); err != nil {
		m.log.Error("refill enqueue failed", zap.Error(err))
		// Release so the next depleted take can retry instead of
		// waiting out the lock TTL.
		if uerr := m.store.Unlock(ctx); uerr != nil {
			m.log.Warn("refill lock release failed", zap.Error(uerr))
		}
	}
}
