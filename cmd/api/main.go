package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/analytics"
	"github.com/marcelsud/shortlink-edge/click"
	"github.com/marcelsud/shortlink-edge/config"
	chihandlers "github.com/marcelsud/shortlink-edge/internal/http/chi"
	"github.com/marcelsud/shortlink-edge/link"
	linkmemory "github.com/marcelsud/shortlink-edge/link/memory"
	linkredis "github.com/marcelsud/shortlink-edge/link/redis"
	"github.com/marcelsud/shortlink-edge/metrics"
	"github.com/marcelsud/shortlink-edge/webhook"
	webhookredis "github.com/marcelsud/shortlink-edge/webhook/redis"
	"github.com/marcelsud/shortlink-edge/workspace"
)

const shutdownTimeout = 30 * time.Second

/* main wires the redirect core together: cache and directory feeding the
 * resolver, the resolver feeding the recorder, and the recorder fanning
 * out to the analytics queue and the webhook dispatcher.
 * Imports point one way only: the binary imports the domain packages,
 * which import their storage implementations.
 */

type endpointStore interface {
	webhook.Store
	Put(ctx context.Context, ep webhook.Endpoint) error
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Error().Err(err).Msg("loading config")
		return
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	normalizer := link.NewNormalizer(cfg.CaseSensitiveDomains)

	directory := link.NewFileDirectory(normalizer)
	if err := directory.Load(cfg.LinksFile); err != nil {
		log.Error().Err(err).Str("file", cfg.LinksFile).Msg("loading links")
		return
	}

	var cache link.Cache
	var store endpointStore
	if cfg.RedisAddr != "" {
		redisCache, err := linkredis.NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, normalizer)
		if err != nil {
			log.Error().Err(err).Msg("connecting link cache")
			return
		}
		defer redisCache.Close(ctx)
		cache = redisCache
		store = webhookredis.NewStoreWithClient(redisCache.Client())
	} else {
		log.Info().Msg("no redis configured, using in-memory cache and endpoint store")
		cache = linkmemory.NewCache(normalizer)
		store = webhook.NewMemoryStore()
	}

	endpoints, err := webhook.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		log.Error().Err(err).Str("file", cfg.EndpointsFile).Msg("loading endpoints")
		return
	}
	for _, ep := range endpoints {
		if err := store.Put(ctx, ep); err != nil {
			log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("seeding endpoint")
			return
		}
	}

	var sink analytics.Sink
	if cfg.SinkURL != "" {
		sink = analytics.NewHTTPSink(cfg.SinkURL, cfg.SinkToken, 10*time.Second)
	} else {
		sink = analytics.LogSink{Log: log.With().Str("component", "sink").Logger()}
	}

	queue := analytics.NewQueue(sink, analytics.QueueConfig{
		Capacity:      cfg.AnalyticsCapacity,
		BatchSize:     cfg.AnalyticsBatchSize,
		FlushInterval: cfg.AnalyticsFlushInterval,
		MaxRetries:    cfg.AnalyticsMaxRetries,
		RetryBackoff:  cfg.AnalyticsRetryBackoff,
	}, log.With().Str("component", "analytics").Logger())
	queue.Start(ctx)
	defer queue.Stop()

	dispatcher := webhook.NewDispatcher(store, webhook.DispatcherConfig{
		QueueCapacity: cfg.WebhookQueueCapacity,
		Workers:       cfg.WebhookWorkers,
		Backoff:       cfg.WebhookBackoff,
		Timeout:       cfg.WebhookTimeout,
	}, log.With().Str("component", "webhooks").Logger())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	resolver := link.NewResolver(cache, directory, normalizer, log.With().Str("component", "resolver").Logger())
	policy := workspace.NewEndpointPolicy(store, log.With().Str("component", "policy").Logger())
	recorder := click.NewRecorder(queue, dispatcher, policy, log.With().Str("component", "recorder").Logger())

	exporter, err := metrics.NewOTelExporter(metrics.NewCoreCollector(resolver, queue, dispatcher))
	if err != nil {
		log.Error().Err(err).Msg("setting up metrics")
		return
	}
	defer exporter.Shutdown(context.Background())

	r := chihandlers.Handlers(ctx, resolver, recorder, chihandlers.RouterConfig{
		CountryHeader: cfg.CountryHeader,
		NotFoundURL:   cfg.NotFoundURL,
		ExpiredURL:    cfg.ExpiredURL,
		PasswordURL:   cfg.PasswordURL,
	}, exporter.Handler())

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	log.Info().Str("port", cfg.Port).Int("links", len(directory.List())).
		Int("endpoints", len(endpoints)).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("serving")
		return
	}
	if err := <-errShutdown; err != nil {
		log.Error().Err(err).Msg("shutting down")
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing server close")
	default:
		errShutdown <- fmt.Errorf("forcing server close: %w", err)
	}
}
