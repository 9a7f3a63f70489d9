package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/webhook/signature"
)

// ErrQueueFull is returned by Enqueue when the pending-delivery queue is
// at capacity; the delivery is dropped rather than blocking the caller.
var ErrQueueFull = errors.New("webhook delivery queue full")

// Delivery headers sent with every attempt.
const (
	HeaderEvent     = "X-Event"
	HeaderEventID   = "X-Event-Id"
	HeaderWebhookID = "X-Webhook-Id"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

/* Delivery is one pending webhook delivery request
 * Ephemeral: it lives on the queue until a terminal outcome and is then
 * discarded; the endpoint record carries the durable outcome
 */
type Delivery struct {
	WebhookID  string
	EventID    string
	Event      string
	Payload    []byte
	EnqueuedAt time.Time
}

// DispatcherConfig tunes queue bounds, workers and the retry schedule.
type DispatcherConfig struct {
	// QueueCapacity bounds pending deliveries; zero means 1024.
	QueueCapacity int
	// Workers is the number of delivery goroutines; zero means 4.
	Workers int
	// Backoff is the fixed delay sequence between attempts; its length
	// plus one is the total attempt budget. Defaults to 1s, 5s
	// (3 attempts total).
	Backoff []time.Duration
	// Timeout bounds each HTTP attempt; zero means 30s, larger is capped.
	Timeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if len(c.Backoff) == 0 {
		c.Backoff = []time.Duration{time.Second, 5 * time.Second}
	}
	if c.Timeout <= 0 || c.Timeout > 30*time.Second {
		c.Timeout = 30 * time.Second
	}
	return c
}

/* Dispatcher delivers signed HTTP callbacks at least once
 * Per delivery the status machine is:
 *   Pending -> Delivering -> Delivered | Retrying | Disabled
 * Retries of one delivery run sequentially in a single worker so a
 * receiving endpoint never sees attempts for the same event reordered
 */
type Dispatcher struct {
	store  Store
	client *http.Client
	cfg    DispatcherConfig
	log    zerolog.Logger

	queue   chan Delivery
	stopped chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	nowFunc func() time.Time

	delivered atomic.Uint64
	retried   atomic.Uint64
	disabled  atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64
	aborted   atomic.Uint64
}

// NewDispatcher creates a dispatcher with dependency injection
func NewDispatcher(store Store, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:     cfg,
		log:     log,
		queue:   make(chan Delivery, cfg.QueueCapacity),
		stopped: make(chan struct{}),
		nowFunc: time.Now,
	}
}

/* Enqueue admits a delivery request for an endpoint
 * No-op for unknown or already-disabled endpoints (checked before
 * delivery, not after); returns ErrQueueFull under backpressure
 */
func (d *Dispatcher) Enqueue(webhookID, event string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ep, err := d.store.Get(ctx, webhookID)
	if errors.Is(err, ErrEndpointNotFound) {
		d.skipped.Add(1)
		d.log.Warn().Str("webhook_id", webhookID).Str("event", event).
			Msg("webhook endpoint not found, skipping delivery")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading webhook endpoint: %w", err)
	}
	if ep.Disabled() {
		d.skipped.Add(1)
		d.log.Debug().Str("webhook_id", webhookID).Str("event", event).
			Msg("webhook endpoint disabled, skipping delivery")
		return nil
	}

	delivery := Delivery{
		WebhookID:  webhookID,
		EventID:    uuid.New().String(),
		Event:      event,
		Payload:    payload,
		EnqueuedAt: d.nowFunc(),
	}

	select {
	case d.queue <- delivery:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Start launches the delivery workers; they stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop waits for in-flight deliveries to reach a terminal state.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stopped) })
	d.wg.Wait()
}

// Depth returns the number of queued deliveries.
func (d *Dispatcher) Depth() int { return len(d.queue) }

// Capacity returns the bound of the pending-delivery queue.
func (d *Dispatcher) Capacity() int { return cap(d.queue) }

// Delivered returns the count of successful deliveries.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Retried returns the count of retry attempts performed.
func (d *Dispatcher) Retried() uint64 { return d.retried.Load() }

// DisabledEndpoints returns the count of endpoints disabled by terminal failures.
func (d *Dispatcher) DisabledEndpoints() uint64 { return d.disabled.Load() }

// Dropped returns the count of deliveries rejected by backpressure.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Skipped returns the count of enqueues ignored for unknown or disabled endpoints.
func (d *Dispatcher) Skipped() uint64 { return d.skipped.Load() }

// Aborted returns the count of deliveries abandoned for configuration errors.
func (d *Dispatcher) Aborted() uint64 { return d.aborted.Load() }

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := d.log.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopped:
			return
		case delivery := <-d.queue:
			d.deliver(ctx, log, delivery)
		}
	}
}

/* deliver drives one delivery through the status machine
 * Errors are isolated per delivery: a failing endpoint never stalls
 * processing for other endpoints or events
 */
func (d *Dispatcher) deliver(ctx context.Context, log zerolog.Logger, delivery Delivery) {
	log = log.With().
		Str("webhook_id", delivery.WebhookID).
		Str("event_id", delivery.EventID).
		Str("event", delivery.Event).
		Logger()

	ep, err := d.store.Get(ctx, delivery.WebhookID)
	if err != nil {
		log.Error().Err(err).Msg("loading endpoint for delivery")
		return
	}
	// The endpoint may have been disabled while the delivery sat queued.
	if ep.Disabled() {
		d.skipped.Add(1)
		return
	}

	// Configuration errors abort without retry.
	if ep.Secret == "" {
		d.aborted.Add(1)
		log.Error().Msg("endpoint has no signing secret, aborting delivery")
		return
	}
	if !json.Valid(delivery.Payload) {
		d.aborted.Add(1)
		log.Error().Msg("malformed webhook payload, aborting delivery")
		return
	}

	maxAttempts := len(d.cfg.Backoff) + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.attempt(ctx, ep, delivery)
		if err == nil {
			d.delivered.Add(1)
			if err := d.store.RecordSuccess(ctx, ep.ID, d.nowFunc()); err != nil {
				log.Error().Err(err).Msg("recording delivery success")
			}
			log.Info().Int("attempt", attempt).Str("status", Delivered.String()).
				Msg("webhook delivered")
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", maxAttempts).
			Str("status", Retrying.String()).
			Msg("webhook delivery attempt failed")

		if attempt < maxAttempts {
			d.retried.Add(1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.cfg.Backoff[attempt-1]):
			}
		}
	}

	// Retry budget exhausted: disable the endpoint until re-enabled externally.
	d.disabled.Add(1)
	if err := d.store.RecordFailure(ctx, ep.ID, d.nowFunc()); err != nil {
		log.Error().Err(err).Msg("recording terminal delivery failure")
	}
	log.Error().Str("status", Disabled.String()).
		Msg("webhook delivery failed terminally, endpoint disabled")
}

// attempt performs a single signed HTTP POST; success is any 2xx response.
func (d *Dispatcher) attempt(ctx context.Context, ep Endpoint, delivery Delivery) error {
	now := d.nowFunc()
	sig, err := signature.Sign(ep.Secret, now, delivery.Payload)
	if err != nil {
		return fmt.Errorf("signing payload: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, ep.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "shortlink-edge/webhooks")
	req.Header.Set(HeaderEvent, delivery.Event)
	req.Header.Set(HeaderEventID, delivery.EventID)
	req.Header.Set(HeaderWebhookID, ep.ID)
	req.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", now.Unix()))
	req.Header.Set(HeaderSignature, sig)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}
	return nil
}
