// Package queue is a generic at-least-once background task runner: named
// queues over an in-process watermill pub/sub, per-queue worker concurrency
// and bounded retries with fixed backoff.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the queue's publish buffer is
// full. Hot-path callers log and drop; they never block on it.
var ErrQueueFull = errors.New("queue buffer full")

// Handler processes one job payload. Returning an error triggers a retry
// up to the queue's attempt budget; handlers must be idempotent.
type Handler func(ctx context.Context, payload []byte) error

// Config tunes one named queue.
type Config struct {
	// Concurrency is the number of worker goroutines. Defaults to 1.
	Concurrency int
	// MaxAttempts is the total number of handler invocations per job
	// before it is dropped as dead. Defaults to 3.
	MaxAttempts int
	// Backoff is the fixed delay between attempts. Defaults to 2s.
	Backoff time.Duration
	// BufferSize bounds the publish buffer; Enqueue on a full buffer
	// returns ErrQueueFull instead of blocking. Defaults to 1024.
	BufferSize int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	return c
}

type namedQueue struct {
	name    string
	cfg     Config
	handler Handler
	buffer  chan []byte
}

// Queue owns all named queues of the process. Build one at startup and
// share it by reference.
type Queue struct {
	pubsub *gochannel.GoChannel
	log    *zap.Logger

	mu     sync.Mutex
	queues map[string]*namedQueue

	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New creates a Queue backed by an in-process pub/sub.
func New(logger *zap.Logger) *Queue {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		NewZapLoggerAdapter(logger),
	)
	return &Queue{
		pubsub: pubsub,
		log:    logger,
		queues: make(map[string]*namedQueue),
	}
}

// Register declares a named queue and its handler. Must be called before
// Start.
func (q *Queue) Register(name string, cfg Config, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("queue %q registered after start", name)
	}
	if _, ok := q.queues[name]; ok {
		return fmt.Errorf("queue %q already registered", name)
	}

	cfg = cfg.withDefaults()
	q.queues[name] = &namedQueue{
		name:    name,
		cfg:     cfg,
		handler: h,
		buffer:  make(chan []byte, cfg.BufferSize),
	}
	return nil
}

// Enqueue marshals the payload and submits it to the named queue without
// blocking. A full buffer yields ErrQueueFull.
func (q *Queue) Enqueue(name string, payload any) error {
	q.mu.Lock()
	nq, ok := q.queues[name]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown queue %q", name)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", name, err)
	}

	select {
	case nq.buffer <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start subscribes every registered queue and launches its pump and
// workers. Runs until ctx is cancelled or Close is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return errors.New("queue already started")
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)

	for _, nq := range q.queues {
		msgs, err := q.pubsub.Subscribe(ctx, nq.name)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", nq.name, err)
		}

		q.wg.Add(1)
		go q.pump(ctx, nq)

		for i := 0; i < nq.cfg.Concurrency; i++ {
			q.wg.Add(1)
			go q.work(ctx, nq, msgs)
		}
	}
	return nil
}

// Close stops workers and the underlying pub/sub.
func (q *Queue) Close() error {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := q.pubsub.Close()
	q.wg.Wait()
	return err
}

// pump drains the bounded buffer into the pub/sub. Keeping publishing off
// the enqueuing goroutine preserves "never block the caller".
func (q *Queue) pump(ctx context.Context, nq *namedQueue) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-nq.buffer:
			msg := message.NewMessage(watermill.NewUUID(), data)
			if err := q.pubsub.Publish(nq.name, msg); err != nil {
				q.log.Error("publish failed",
					zap.String("queue", nq.name),
					zap.Error(err))
			}
		}
	}
}

func (q *Queue) work(ctx context.Context, nq *namedQueue, msgs <-chan *message.Message) {
	defer q.wg.Done()
	for msg := range msgs {
		// Ack on receipt: the pub/sub holds the next delivery until the
		// current message is acked, which would serialize the workers.
		// Retries happen inside process and a job past its attempt
		// budget is dead, so the ack carries no outcome.
		jobID, payload := msg.UUID, msg.Payload
		msg.Ack()
		q.process(ctx, nq, jobID, payload)
	}
}

func (q *Queue) process(ctx context.Context, nq *namedQueue, jobID string, payload []byte) {
	var lastErr error
	for attempt := 1; attempt <= nq.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}
		lastErr = nq.handler(ctx, payload)
		if lastErr == nil {
			return
		}
		q.log.Warn("job attempt failed",
			zap.String("queue", nq.name),
			zap.String("job_id", jobID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < nq.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(nq.cfg.Backoff):
			}
		}
	}
	q.log.Error("job dead after max attempts",
		zap.String("queue", nq.name),
		zap.String("job_id", jobID),
		zap.Int("attempts", nq.cfg.MaxAttempts),
		zap.Error(lastErr))
}
