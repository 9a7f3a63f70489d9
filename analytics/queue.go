package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/click"
)

// ErrBackpressure is returned by Submit when the queue is full.
// Redirect latency takes priority over analytics completeness: the
// event is dropped, never the redirect.
var ErrBackpressure = errors.New("analytics queue full")

// QueueConfig tunes capacity, batching and the retry budget.
type QueueConfig struct {
	// Capacity bounds the queue; zero means 4096.
	Capacity int
	// BatchSize flushes a batch once it reaches this size; zero means 100.
	BatchSize int
	// FlushInterval flushes a partial batch after this long; zero means 2s.
	FlushInterval time.Duration
	// MaxRetries bounds flush retries per batch; zero means 3.
	MaxRetries int
	// RetryBackoff is the base delay, doubled per retry; zero means 500ms.
	RetryBackoff time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Capacity <= 0 {
		c.Capacity = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

/* Queue is the bounded analytics ingestion queue
 * Producers never block: Submit either admits the event or rejects with
 * ErrBackpressure. A single consumer goroutine accumulates events into
 * batches (size or time threshold, whichever first) and flushes them to
 * the sink, preserving submission order within a batch
 */
type Queue struct {
	sink Sink
	cfg  QueueConfig
	log  zerolog.Logger

	ch      chan click.Event
	stopped chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	dropped        atomic.Uint64
	ingested       atomic.Uint64
	flushedBatches atomic.Uint64
	droppedBatches atomic.Uint64
}

// NewQueue creates a bounded ingestion queue in front of the sink
func NewQueue(sink Sink, cfg QueueConfig, log zerolog.Logger) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		sink:    sink,
		cfg:     cfg,
		log:     log,
		ch:      make(chan click.Event, cfg.Capacity),
		stopped: make(chan struct{}),
	}
}

// Submit admits an event without blocking; ErrBackpressure when full.
func (q *Queue) Submit(ev click.Event) error {
	select {
	case q.ch <- ev:
		return nil
	default:
		q.dropped.Add(1)
		return ErrBackpressure
	}
}

// Start launches the consumer; it stops when ctx is cancelled or Stop is
// called, flushing whatever is buffered first.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.consume(ctx)
}

// Stop shuts the consumer down after a final flush.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stopped) })
	q.wg.Wait()
}

// Depth returns the number of queued events.
func (q *Queue) Depth() int { return len(q.ch) }

// Capacity returns the queue bound.
func (q *Queue) Capacity() int { return cap(q.ch) }

// Dropped returns the count of events rejected by backpressure.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Ingested returns the count of events successfully flushed to the sink.
func (q *Queue) Ingested() uint64 { return q.ingested.Load() }

// FlushedBatches returns the count of successful batch flushes.
func (q *Queue) FlushedBatches() uint64 { return q.flushedBatches.Load() }

// DroppedBatches returns the count of batches dropped after the retry budget.
func (q *Queue) DroppedBatches() uint64 { return q.droppedBatches.Load() }

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()

	batch := make([]click.Event, 0, q.cfg.BatchSize)
	ticker := time.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		q.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-q.stopped:
			// Drain what is already queued, then final-flush.
			for {
				select {
				case ev := <-q.ch:
					batch = append(batch, ev)
					if len(batch) >= q.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case ev := <-q.ch:
			batch = append(batch, ev)
			if len(batch) >= q.cfg.BatchSize {
				flush()
				ticker.Reset(q.cfg.FlushInterval)
			}
		case <-ticker.C:
			flush()
		}
	}
}

/* flush pushes one batch to the sink with exponential backoff
 * Events exceeding the retry budget are dropped and counted; analytics
 * loss is acceptable, stalling the consumer indefinitely is not
 */
func (q *Queue) flush(ctx context.Context, batch []click.Event) {
	events := make([]click.Event, len(batch))
	copy(events, batch)

	backoff := q.cfg.RetryBackoff
	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := q.sink.Ingest(ctx, events)
		if err == nil {
			q.ingested.Add(uint64(len(events)))
			q.flushedBatches.Add(1)
			return
		}
		q.log.Warn().Err(err).Int("batch_size", len(events)).Int("attempt", attempt+1).
			Msg("flushing click events")
	}

	q.droppedBatches.Add(1)
	q.dropped.Add(uint64(len(events)))
	q.log.Error().Int("batch_size", len(events)).
		Msg("dropping click event batch after retry budget")
}
