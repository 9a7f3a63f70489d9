package chi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/shortlink-edge/click"
	shortlinkchi "github.com/marcelsud/shortlink-edge/internal/http/chi"
	"github.com/marcelsud/shortlink-edge/link"
	"github.com/marcelsud/shortlink-edge/link/memory"
	"github.com/marcelsud/shortlink-edge/workspace"
)

type mapDirectory map[string]link.Record

func (d mapDirectory) Lookup(ctx context.Context, domain, key string) (link.Record, error) {
	rec, ok := d[domain+"/"+key]
	if !ok {
		return link.Record{}, link.ErrNotFound
	}
	return rec, nil
}

type captureQueue struct {
	events []click.Event
}

func (q *captureQueue) Submit(ev click.Event) error {
	q.events = append(q.events, ev)
	return nil
}

type noopDispatcher struct{}

func (noopDispatcher) Enqueue(webhookID, event string, payload []byte) error { return nil }

func newRouter(t *testing.T, cfg shortlinkchi.RouterConfig, records ...link.Record) (http.Handler, *captureQueue) {
	t.Helper()
	normalizer := link.NewNormalizer(nil)
	dir := make(mapDirectory)
	for _, rec := range records {
		dir[rec.Domain+"/"+rec.Key] = rec
	}
	resolver := link.NewResolver(memory.NewCache(normalizer), dir, normalizer, zerolog.Nop())
	queue := &captureQueue{}
	recorder := click.NewRecorder(queue, noopDispatcher{}, workspace.Static{}, zerolog.Nop())
	return shortlinkchi.Handlers(context.Background(), resolver, recorder, cfg, nil), queue
}

func get(t *testing.T, router http.Handler, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRedirect(t *testing.T) {
	promo := link.Record{
		ID:        "lk_promo",
		Domain:    "sho.rt",
		Key:       "promo",
		TargetURL: "https://example.com/landing",
		GeoRules:  map[string]string{"DE": "https://example.com/de"},
	}

	t.Run("host-based route", func(t *testing.T) {
		router, queue := newRouter(t, shortlinkchi.RouterConfig{}, promo)

		rr := get(t, router, "http://sho.rt/promo", nil)

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "https://example.com/landing", rr.Header().Get("Location"))
		require.Len(t, queue.events, 1)
		assert.Equal(t, "lk_promo", queue.events[0].LinkID)
	})

	t.Run("host port is stripped", func(t *testing.T) {
		router, _ := newRouter(t, shortlinkchi.RouterConfig{}, promo)

		rr := get(t, router, "http://sho.rt:8080/promo", nil)

		assert.Equal(t, http.StatusFound, rr.Code)
	})

	t.Run("path-based route", func(t *testing.T) {
		router, _ := newRouter(t, shortlinkchi.RouterConfig{}, promo)

		rr := get(t, router, "http://edge.internal/sho.rt/promo", nil)

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "https://example.com/landing", rr.Header().Get("Location"))
	})

	t.Run("geo hint from the configured header", func(t *testing.T) {
		router, queue := newRouter(t, shortlinkchi.RouterConfig{CountryHeader: "CF-IPCountry"}, promo)

		rr := get(t, router, "http://sho.rt/promo", func(req *http.Request) {
			req.Header.Set("CF-IPCountry", "DE")
		})

		assert.Equal(t, "https://example.com/de", rr.Header().Get("Location"))
		require.Len(t, queue.events, 1)
		assert.Equal(t, "DE", queue.events[0].Country)
	})

	t.Run("client ip prefers the first forwarded hop", func(t *testing.T) {
		router, queue := newRouter(t, shortlinkchi.RouterConfig{}, promo)

		get(t, router, "http://sho.rt/promo", func(req *http.Request) {
			req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		})

		require.Len(t, queue.events, 1)
		assert.Equal(t, "203.0.113.9", queue.events[0].IP)
	})
}

func TestRedirectDenials(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	expired := link.Record{
		ID: "lk_old", Domain: "sho.rt", Key: "old",
		TargetURL: "https://example.com/landing", ExpiresAt: &past,
	}
	protected := link.Record{
		ID: "lk_secret", Domain: "sho.rt", Key: "secret",
		TargetURL: "https://example.com/internal",
		Password:  "hunter2", PasswordSet: true,
	}

	t.Run("json errors without configured pages", func(t *testing.T) {
		router, queue := newRouter(t, shortlinkchi.RouterConfig{}, expired, protected)

		rr := get(t, router, "http://sho.rt/missing", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"link not found"}`, rr.Body.String())

		rr = get(t, router, "http://sho.rt/old", nil)
		assert.Equal(t, http.StatusGone, rr.Code)

		rr = get(t, router, "http://sho.rt/secret", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		assert.Empty(t, queue.events, "denied resolutions must not record clicks")
	})

	t.Run("redirects to configured denial pages", func(t *testing.T) {
		cfg := shortlinkchi.RouterConfig{
			NotFoundURL: "https://sho.rt/404",
			ExpiredURL:  "https://sho.rt/expired",
			PasswordURL: "https://sho.rt/password",
		}
		router, _ := newRouter(t, cfg, expired, protected)

		rr := get(t, router, "http://sho.rt/missing", nil)
		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "https://sho.rt/404", rr.Header().Get("Location"))

		rr = get(t, router, "http://sho.rt/old", nil)
		assert.Equal(t, "https://sho.rt/expired", rr.Header().Get("Location"))

		rr = get(t, router, "http://sho.rt/secret", nil)
		assert.Equal(t, "https://sho.rt/password", rr.Header().Get("Location"))
	})

	t.Run("password from query or header", func(t *testing.T) {
		router, _ := newRouter(t, shortlinkchi.RouterConfig{}, protected)

		rr := get(t, router, "http://sho.rt/secret?password=hunter2", nil)
		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "https://example.com/internal", rr.Header().Get("Location"))

		rr = get(t, router, "http://sho.rt/secret", func(req *http.Request) {
			req.Header.Set(shortlinkchi.PasswordHeader, "hunter2")
		})
		assert.Equal(t, http.StatusFound, rr.Code)
	})
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t, shortlinkchi.RouterConfig{})

	rr := get(t, router, "http://sho.rt/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}
