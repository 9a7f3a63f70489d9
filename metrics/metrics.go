package metrics

import (
	"context"
	"time"
)

// Snapshot represents the current state of the redirect core.
type Snapshot struct {
	// Resolver counters
	Redirects   uint64 `json:"redirects"`
	Denials     uint64 `json:"denials"`
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`

	// Analytics ingestion queue
	AnalyticsQueueDepth     int64  `json:"analytics_queue_depth"`
	AnalyticsQueueCapacity  int64  `json:"analytics_queue_capacity"`
	AnalyticsIngested       uint64 `json:"analytics_ingested"`
	AnalyticsDropped        uint64 `json:"analytics_dropped"`
	AnalyticsBatchesFlushed uint64 `json:"analytics_batches_flushed"`
	AnalyticsBatchesDropped uint64 `json:"analytics_batches_dropped"`

	// Webhook dispatcher
	WebhookQueueDepth        int64  `json:"webhook_queue_depth"`
	WebhookQueueCapacity     int64  `json:"webhook_queue_capacity"`
	WebhookDelivered         uint64 `json:"webhook_delivered"`
	WebhookRetried           uint64 `json:"webhook_retried"`
	WebhookDropped           uint64 `json:"webhook_dropped"`
	WebhookSkipped           uint64 `json:"webhook_skipped"`
	WebhookAborted           uint64 `json:"webhook_aborted"`
	WebhookEndpointsDisabled uint64 `json:"webhook_endpoints_disabled"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// ResolverStats is what the collector needs from the redirect resolver.
type ResolverStats interface {
	Redirects() uint64
	Denials() uint64
	CacheHits() uint64
	CacheMisses() uint64
}

// QueueStats is what the collector needs from the analytics queue.
type QueueStats interface {
	Depth() int
	Capacity() int
	Ingested() uint64
	Dropped() uint64
	FlushedBatches() uint64
	DroppedBatches() uint64
}

// DispatcherStats is what the collector needs from the webhook dispatcher.
type DispatcherStats interface {
	Depth() int
	Capacity() int
	Delivered() uint64
	Retried() uint64
	Dropped() uint64
	Skipped() uint64
	Aborted() uint64
	DisabledEndpoints() uint64
}

// Collector defines the interface for collecting metrics from the core.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Snapshot, error)
}

// CoreCollector gathers counters straight from the in-process components.
type CoreCollector struct {
	resolver   ResolverStats
	queue      QueueStats
	dispatcher DispatcherStats
}

// NewCoreCollector creates a collector over the live components
func NewCoreCollector(resolver ResolverStats, queue QueueStats, dispatcher DispatcherStats) *CoreCollector {
	return &CoreCollector{
		resolver:   resolver,
		queue:      queue,
		dispatcher: dispatcher,
	}
}

// Collect gathers all metrics from the running components
func (c *CoreCollector) Collect(ctx context.Context) (Snapshot, error) {
	return Snapshot{
		Redirects:   c.resolver.Redirects(),
		Denials:     c.resolver.Denials(),
		CacheHits:   c.resolver.CacheHits(),
		CacheMisses: c.resolver.CacheMisses(),

		AnalyticsQueueDepth:     int64(c.queue.Depth()),
		AnalyticsQueueCapacity:  int64(c.queue.Capacity()),
		AnalyticsIngested:       c.queue.Ingested(),
		AnalyticsDropped:        c.queue.Dropped(),
		AnalyticsBatchesFlushed: c.queue.FlushedBatches(),
		AnalyticsBatchesDropped: c.queue.DroppedBatches(),

		WebhookQueueDepth:        int64(c.dispatcher.Depth()),
		WebhookQueueCapacity:     int64(c.dispatcher.Capacity()),
		WebhookDelivered:         c.dispatcher.Delivered(),
		WebhookRetried:           c.dispatcher.Retried(),
		WebhookDropped:           c.dispatcher.Dropped(),
		WebhookSkipped:           c.dispatcher.Skipped(),
		WebhookAborted:           c.dispatcher.Aborted(),
		WebhookEndpointsDisabled: c.dispatcher.DisabledEndpoints(),

		Timestamp: time.Now(),
	}, nil
}
