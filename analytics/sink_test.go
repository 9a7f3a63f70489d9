package analytics_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/shortlink-edge/analytics"
	"github.com/marcelsud/shortlink-edge/click"
)

func TestHTTPSink(t *testing.T) {
	ctx := context.Background()
	events := []click.Event{event("c1"), event("c2")}

	t.Run("posts newline-delimited json", func(t *testing.T) {
		var gotBody string
		var gotHeader http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			gotHeader = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sink := analytics.NewHTTPSink(srv.URL, "tb_token", 5*time.Second)
		require.NoError(t, sink.Ingest(ctx, events))

		assert.Equal(t, "application/x-ndjson", gotHeader.Get("Content-Type"))
		assert.Equal(t, "Bearer tb_token", gotHeader.Get("Authorization"))

		lines := strings.Split(strings.TrimRight(gotBody, "\n"), "\n")
		require.Len(t, lines, 2)
		var decoded click.Event
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
		assert.Equal(t, "c1", decoded.ClickID)
	})

	t.Run("no auth header without a token", func(t *testing.T) {
		var gotHeader http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Clone()
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		sink := analytics.NewHTTPSink(srv.URL, "", 5*time.Second)
		require.NoError(t, sink.Ingest(ctx, events))

		assert.Empty(t, gotHeader.Get("Authorization"))
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		sink := analytics.NewHTTPSink(srv.URL, "tb_token", 5*time.Second)

		err := sink.Ingest(ctx, events)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("unreachable sink", func(t *testing.T) {
		sink := analytics.NewHTTPSink("http://127.0.0.1:1", "", time.Second)

		assert.Error(t, sink.Ingest(ctx, events))
	})
}
