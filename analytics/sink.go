// Package analytics buffers click events off the redirect hot path and
// flushes them in batches to an external sink.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/click"
)

/* Sink ingests click event batches
 * Treated as at-least-once: duplicates under retry are acceptable and
 * expected on the sink side
 */
type Sink interface {
	Ingest(ctx context.Context, events []click.Event) error
}

/* HTTPSink posts batches as newline-delimited JSON to an events API
 * (Tinybird-style ingestion endpoint)
 */
type HTTPSink struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPSink creates a sink posting to the given ingestion URL
func NewHTTPSink(url, token string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ingest posts one batch; any non-2xx response is an error
func (s *HTTPSink) Ingest(ctx context.Context, events []click.Event) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encoding click event: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return fmt.Errorf("building ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting click events: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected ingest response status: %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes events to the structured log; development fallback when
// no ingestion endpoint is configured.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Ingest(ctx context.Context, events []click.Event) error {
	for _, ev := range events {
		s.Log.Info().
			Str("click_id", ev.ClickID).
			Str("link_id", ev.LinkID).
			Str("domain", ev.Domain).
			Str("key", ev.Key).
			Str("country", ev.Country).
			Str("device", ev.Device).
			Bool("bot", ev.Bot).
			Msg("click")
	}
	return nil
}
