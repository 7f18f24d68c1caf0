package queue_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shortlink/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testJob struct {
	Value string `json:"value"`
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestEnqueue_DeliversPayloadToHandler(t *testing.T) {
	q := queue.New(zap.NewNop())

	var mu sync.Mutex
	var got []string
	err := q.Register("test.deliver", queue.Config{Concurrency: 2}, func(ctx context.Context, payload []byte) error {
		var job testJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, job.Value)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Start(context.Background()))
	defer q.Close()

	require.NoError(t, q.Enqueue("test.deliver", testJob{Value: "a"}))
	require.NoError(t, q.Enqueue("test.deliver", testJob{Value: "b"}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	mu.Unlock()
}

func TestEnqueue_UnknownQueue(t *testing.T) {
	q := queue.New(zap.NewNop())
	err := q.Enqueue("nope", testJob{})
	assert.Error(t, err)
}

func TestProcess_RetriesUpToMaxAttempts(t *testing.T) {
	q := queue.New(zap.NewNop())

	var calls atomic.Int32
	err := q.Register("test.retry", queue.Config{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return assert.AnError
	})
	require.NoError(t, err)

	require.NoError(t, q.Start(context.Background()))
	defer q.Close()

	require.NoError(t, q.Enqueue("test.retry", testJob{Value: "x"}))

	waitFor(t, func() bool { return calls.Load() == 3 })
	// Dead after the budget; no further attempts.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcess_RetrySucceedsBeforeBudget(t *testing.T) {
	q := queue.New(zap.NewNop())

	var calls atomic.Int32
	err := q.Register("test.flaky", queue.Config{
		MaxAttempts: 5,
		Backoff:     time.Millisecond,
	}, func(ctx context.Context, payload []byte) error {
		if calls.Add(1) < 3 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Start(context.Background()))
	defer q.Close()

	require.NoError(t, q.Enqueue("test.flaky", testJob{}))

	waitFor(t, func() bool { return calls.Load() == 3 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEnqueue_FullBufferDropsWithoutBlocking(t *testing.T) {
	q := queue.New(zap.NewNop())

	// Never started, so the buffer is never drained.
	require.NoError(t, q.Register("test.full", queue.Config{BufferSize: 2}, func(ctx context.Context, payload []byte) error {
		return nil
	}))

	require.NoError(t, q.Enqueue("test.full", testJob{}))
	require.NoError(t, q.Enqueue("test.full", testJob{}))

	done := make(chan error, 1)
	go func() { done <- q.Enqueue("test.full", testJob{}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, queue.ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full buffer")
	}
}

func TestRegister_AfterStartFails(t *testing.T) {
	q := queue.New(zap.NewNop())
	require.NoError(t, q.Start(context.Background()))
	defer q.Close()

	err := q.Register("late", queue.Config{}, func(ctx context.Context, payload []byte) error { return nil })
	assert.Error(t, err)
}

func TestWorkers_RunConcurrently(t *testing.T) {
	q := queue.New(zap.NewNop())

	var inflight, peak, done atomic.Int32
	err := q.Register("test.concurrent", queue.Config{Concurrency: 5}, func(ctx context.Context, payload []byte) error {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		inflight.Add(-1)
		done.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Start(context.Background()))
	defer q.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue("test.concurrent", testJob{}))
	}

	waitFor(t, func() bool { return done.Load() == 10 })
	// Slow jobs must pile up across the workers, not drain one at a time
	// through a single delivery slot.
	assert.GreaterOrEqual(t, peak.Load(), int32(4))
}
