package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	meter metric.Meter

	queueDepthGauge    metric.Int64ObservableGauge
	queueCapacityGauge metric.Int64ObservableGauge
	redirectsCounter   metric.Int64ObservableCounter
	denialsCounter     metric.Int64ObservableCounter
	cacheCounter       metric.Int64ObservableCounter
	ingestedCounter    metric.Int64ObservableCounter
	droppedCounter     metric.Int64ObservableCounter
	deliveredCounter   metric.Int64ObservableCounter
	retriedCounter     metric.Int64ObservableCounter
	disabledCounter    metric.Int64ObservableCounter
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"shortlink-edge",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// Handler returns the HTTP handler serving Prometheus-format metrics
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	return oe.meterProvider.Shutdown(ctx)
}

func (oe *OTelExporter) registerInstruments() error {
	var err error

	if oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"shortlink_queue_depth",
		metric.WithDescription("Number of items waiting in a bounded queue"),
	); err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	if oe.queueCapacityGauge, err = oe.meter.Int64ObservableGauge(
		"shortlink_queue_capacity",
		metric.WithDescription("Bound of a queue"),
	); err != nil {
		return fmt.Errorf("creating queue capacity gauge: %w", err)
	}

	if oe.redirectsCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_redirects_total",
		metric.WithDescription("Successful redirect resolutions"),
	); err != nil {
		return fmt.Errorf("creating redirects counter: %w", err)
	}

	if oe.denialsCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_denials_total",
		metric.WithDescription("Denied redirect resolutions"),
	); err != nil {
		return fmt.Errorf("creating denials counter: %w", err)
	}

	if oe.cacheCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_link_cache_lookups_total",
		metric.WithDescription("Link cache lookups by result"),
	); err != nil {
		return fmt.Errorf("creating cache counter: %w", err)
	}

	if oe.ingestedCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_analytics_ingested_total",
		metric.WithDescription("Click events flushed to the analytics sink"),
	); err != nil {
		return fmt.Errorf("creating ingested counter: %w", err)
	}

	if oe.droppedCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_dropped_total",
		metric.WithDescription("Work items dropped by queue"),
	); err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	if oe.deliveredCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_webhook_delivered_total",
		metric.WithDescription("Successful webhook deliveries"),
	); err != nil {
		return fmt.Errorf("creating delivered counter: %w", err)
	}

	if oe.retriedCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_webhook_retries_total",
		metric.WithDescription("Webhook delivery retries"),
	); err != nil {
		return fmt.Errorf("creating retried counter: %w", err)
	}

	if oe.disabledCounter, err = oe.meter.Int64ObservableCounter(
		"shortlink_webhook_endpoints_disabled_total",
		metric.WithDescription("Webhook endpoints disabled after terminal failures"),
	); err != nil {
		return fmt.Errorf("creating disabled counter: %w", err)
	}

	_, err = oe.meter.RegisterCallback(
		oe.observe,
		oe.queueDepthGauge,
		oe.queueCapacityGauge,
		oe.redirectsCounter,
		oe.denialsCounter,
		oe.cacheCounter,
		oe.ingestedCounter,
		oe.droppedCounter,
		oe.deliveredCounter,
		oe.retriedCounter,
		oe.disabledCounter,
	)
	if err != nil {
		return fmt.Errorf("registering callback: %w", err)
	}
	return nil
}

func (oe *OTelExporter) observe(ctx context.Context, observer metric.Observer) error {
	snapshot, err := oe.collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collecting metrics: %w", err)
	}

	analyticsAttrs := metric.WithAttributes(attribute.String("queue", "analytics"))
	webhookAttrs := metric.WithAttributes(attribute.String("queue", "webhook"))

	observer.ObserveInt64(oe.queueDepthGauge, snapshot.AnalyticsQueueDepth, analyticsAttrs)
	observer.ObserveInt64(oe.queueDepthGauge, snapshot.WebhookQueueDepth, webhookAttrs)
	observer.ObserveInt64(oe.queueCapacityGauge, snapshot.AnalyticsQueueCapacity, analyticsAttrs)
	observer.ObserveInt64(oe.queueCapacityGauge, snapshot.WebhookQueueCapacity, webhookAttrs)

	observer.ObserveInt64(oe.redirectsCounter, int64(snapshot.Redirects))
	observer.ObserveInt64(oe.denialsCounter, int64(snapshot.Denials))

	observer.ObserveInt64(oe.cacheCounter, int64(snapshot.CacheHits),
		metric.WithAttributes(attribute.String("result", "hit")))
	observer.ObserveInt64(oe.cacheCounter, int64(snapshot.CacheMisses),
		metric.WithAttributes(attribute.String("result", "miss")))

	observer.ObserveInt64(oe.ingestedCounter, int64(snapshot.AnalyticsIngested))
	observer.ObserveInt64(oe.droppedCounter, int64(snapshot.AnalyticsDropped), analyticsAttrs)
	observer.ObserveInt64(oe.droppedCounter, int64(snapshot.WebhookDropped), webhookAttrs)

	observer.ObserveInt64(oe.deliveredCounter, int64(snapshot.WebhookDelivered))
	observer.ObserveInt64(oe.retriedCounter, int64(snapshot.WebhookRetried))
	observer.ObserveInt64(oe.disabledCounter, int64(snapshot.WebhookEndpointsDisabled))

	return nil
}
