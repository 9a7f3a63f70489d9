package analytics_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/shortlink-edge/analytics"
	"github.com/marcelsud/shortlink-edge/click"
)

// captureSink records ingested batches and can fail the first failures calls.
type captureSink struct {
	mu       sync.Mutex
	batches  [][]click.Event
	calls    int
	failures int
	block    chan struct{}
}

func (s *captureSink) Ingest(ctx context.Context, events []click.Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("sink unavailable")
	}
	batch := make([]click.Event, len(events))
	copy(batch, events)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *captureSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *captureSink) batch(i int) []click.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[i]
}

func event(id string) click.Event {
	return click.Event{ClickID: id, LinkID: "lk_1", Domain: "sho.rt", Key: "promo"}
}

func startQueue(t *testing.T, sink analytics.Sink, cfg analytics.QueueConfig) *analytics.Queue {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	q := analytics.NewQueue(sink, cfg, zerolog.Nop())
	q.Start(ctx)
	t.Cleanup(func() {
		cancel()
		q.Stop()
	})
	return q
}

func TestQueueSubmit(t *testing.T) {
	t.Run("backpressure when full", func(t *testing.T) {
		// Not started: nothing drains, so the bound is observable.
		q := analytics.NewQueue(&captureSink{}, analytics.QueueConfig{Capacity: 2}, zerolog.Nop())

		require.NoError(t, q.Submit(event("c1")))
		require.NoError(t, q.Submit(event("c2")))

		err := q.Submit(event("c3"))
		assert.ErrorIs(t, err, analytics.ErrBackpressure)
		assert.Equal(t, uint64(1), q.Dropped())
		assert.Equal(t, 2, q.Depth())
		assert.Equal(t, 2, q.Capacity())
	})

	t.Run("submit returns before the sink is called", func(t *testing.T) {
		sink := &captureSink{block: make(chan struct{})}
		defer close(sink.block)
		q := startQueue(t, sink, analytics.QueueConfig{Capacity: 8, BatchSize: 1, FlushInterval: time.Hour})

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 8; i++ {
				q.Submit(event(fmt.Sprintf("c%d", i)))
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Submit blocked on a slow sink")
		}
	})
}

func TestQueueBatching(t *testing.T) {
	t.Run("flushes when the batch size is reached", func(t *testing.T) {
		sink := &captureSink{}
		q := startQueue(t, sink, analytics.QueueConfig{BatchSize: 3, FlushInterval: time.Hour})

		require.NoError(t, q.Submit(event("c1")))
		require.NoError(t, q.Submit(event("c2")))
		require.NoError(t, q.Submit(event("c3")))

		require.Eventually(t, func() bool { return sink.batchCount() == 1 }, 5*time.Second, 10*time.Millisecond)
		batch := sink.batch(0)
		require.Len(t, batch, 3)
		// Submission order is preserved within the batch.
		assert.Equal(t, "c1", batch[0].ClickID)
		assert.Equal(t, "c2", batch[1].ClickID)
		assert.Equal(t, "c3", batch[2].ClickID)
		assert.Equal(t, uint64(3), q.Ingested())
		assert.Equal(t, uint64(1), q.FlushedBatches())
	})

	t.Run("flushes a partial batch on the interval", func(t *testing.T) {
		sink := &captureSink{}
		q := startQueue(t, sink, analytics.QueueConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond})

		require.NoError(t, q.Submit(event("c1")))

		require.Eventually(t, func() bool { return sink.batchCount() == 1 }, 5*time.Second, 10*time.Millisecond)
		assert.Len(t, sink.batch(0), 1)
	})

	t.Run("stop flushes buffered events", func(t *testing.T) {
		sink := &captureSink{}
		ctx := context.Background()
		q := analytics.NewQueue(sink, analytics.QueueConfig{BatchSize: 100, FlushInterval: time.Hour}, zerolog.Nop())
		q.Start(ctx)

		require.NoError(t, q.Submit(event("c1")))
		require.NoError(t, q.Submit(event("c2")))
		q.Stop()

		require.Equal(t, 1, sink.batchCount())
		assert.Len(t, sink.batch(0), 2)
		assert.Equal(t, uint64(2), q.Ingested())
	})
}

func TestQueueRetry(t *testing.T) {
	t.Run("retries a failing flush then succeeds", func(t *testing.T) {
		sink := &captureSink{failures: 2}
		q := startQueue(t, sink, analytics.QueueConfig{
			BatchSize:     1,
			FlushInterval: time.Hour,
			MaxRetries:    3,
			RetryBackoff:  time.Millisecond,
		})

		require.NoError(t, q.Submit(event("c1")))

		require.Eventually(t, func() bool { return sink.batchCount() == 1 }, 5*time.Second, 10*time.Millisecond)
		assert.Equal(t, uint64(1), q.Ingested())
		assert.Zero(t, q.DroppedBatches())
	})

	t.Run("drops the batch after the retry budget", func(t *testing.T) {
		sink := &captureSink{failures: 100}
		q := startQueue(t, sink, analytics.QueueConfig{
			BatchSize:     2,
			FlushInterval: time.Hour,
			MaxRetries:    2,
			RetryBackoff:  time.Millisecond,
		})

		require.NoError(t, q.Submit(event("c1")))
		require.NoError(t, q.Submit(event("c2")))

		require.Eventually(t, func() bool { return q.DroppedBatches() == 1 }, 5*time.Second, 10*time.Millisecond)
		assert.Equal(t, uint64(2), q.Dropped())
		assert.Zero(t, q.Ingested())

		// The consumer is not stalled by the dropped batch.
		sink.mu.Lock()
		sink.failures = 0
		sink.calls = 0
		sink.mu.Unlock()
		require.NoError(t, q.Submit(event("c3")))
		require.NoError(t, q.Submit(event("c4")))
		require.Eventually(t, func() bool { return q.Ingested() == 2 }, 5*time.Second, 10*time.Millisecond)
	})
}
