// Command server runs the shortlink service: the HTTP API plus the
// background workers for pool refill, click processing and link updates.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortlink/internal/cache"
	"shortlink/internal/config"
	delivery "shortlink/internal/delivery/http"
	"shortlink/internal/jobs"
	"shortlink/internal/pool"
	"shortlink/internal/queue"
	"shortlink/internal/repository/postgres"
	"shortlink/internal/repository/postgres/migrations"
	"shortlink/internal/service"
	"shortlink/internal/shortcode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load(os.Getenv("SHORTLINK_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrator, err := migrations.New(cfg.Postgres.DSN, logger)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return err
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("close migrator", zap.Error(err))
	}

	db, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open postgres pool: %w", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	links := postgres.NewLinkRepository(db)
	clickLogs := postgres.NewClickLogRepository(db)

	linkCache := cache.NewLinkCache(rdb, cfg.Cache.LinkTTL, cfg.Cache.NotFoundTTL, logger)
	counter := cache.NewClickCounter(rdb, cfg.Cache.ClickCountTTL)

	jobQueue := queue.New(logger)
	defer jobQueue.Close()

	poolStore := pool.NewRedisStore(rdb)
	poolMgr := pool.NewManager(poolStore, jobQueue, pool.Config{
		MinThreshold: cfg.Pool.MinThreshold,
		MaxSize:      cfg.Pool.MaxSize,
		LockTTL:      cfg.Pool.LockTTL,
	}, logger)

	generator := shortcode.NewGenerator(cfg.ShortCode.Secret)

	refiller := jobs.NewPoolRefiller(generator, links, poolStore, jobs.RefillConfig{
		MaxSize:   cfg.Pool.MaxSize,
		BatchSize: cfg.Pool.RefillBatchSize,
	}, logger)
	clickProcessor := jobs.NewClickProcessor(counter, links, clickLogs, linkCache,
		jobQueue, cfg.Clicks.SyncEvery, logger)
	deactivator := jobs.NewLinkDeactivator(links, linkCache, logger)

	queueDefaults := queue.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     cfg.Queue.Backoff,
		BufferSize:  cfg.Queue.BufferSize,
	}
	register := func(name string, concurrency int, h queue.Handler) error {
		qc := queueDefaults
		qc.Concurrency = concurrency
		return jobQueue.Register(name, qc, h)
	}
	// The refill queue stays at one worker so collision checks never race
	// within a deployment.
	if err := register(pool.QueueRefill, cfg.Queue.RefillWorkers, refiller.Handle); err != nil {
		return err
	}
	if err := register(jobs.QueueClicks, cfg.Queue.ClickWorkers, clickProcessor.Handle); err != nil {
		return err
	}
	if err := register(jobs.QueueLinkUpdate, cfg.Queue.UpdateWorkers, deactivator.Handle); err != nil {
		return err
	}
	if err := jobQueue.Start(ctx); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}

	linkService := service.NewLinkService(links, poolMgr, generator, linkCache, counter, logger)
	resolver := service.NewResolver(links, linkCache, jobQueue, logger)

	handler := delivery.NewHandler(linkService, resolver, cfg.Server.BaseURL, logger)
	router := delivery.NewRouter(handler, delivery.RouterConfig{
		CreateRequestsPerMinute: cfg.Server.CreateRateLimit,
	}, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Warm the pool on boot; the lock keeps concurrent instances from
	// refilling twice.
	warmPool(ctx, poolMgr, jobQueue, poolStore, cfg.Pool.LockTTL, logger)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func warmPool(ctx context.Context, mgr *pool.Manager, q *queue.Queue, store *pool.RedisStore, lockTTL time.Duration, logger *zap.Logger) {
	size, low, err := mgr.Stats(ctx)
	if err != nil {
		logger.Warn("pool stats on boot failed", zap.Error(err))
		return
	}
	if !low {
		return
	}
	ok, err := store.TryLock(ctx, lockTTL)
	if err != nil || !ok {
		return
	}
	if err := q.Enqueue(pool.QueueRefill, pool.RefillJob{}); err != nil {
		logger.Warn("boot refill enqueue failed", zap.Error(err))
		_ = store.Unlock(ctx)
		return
	}
	logger.Info("boot refill queued", zap.Int64("pool_size", size))
}
