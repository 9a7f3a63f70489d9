package chi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/marcelsud/shortlink-edge/click"
	"github.com/marcelsud/shortlink-edge/link"
)

// PasswordHeader supplies the link password without putting it in the URL.
const PasswordHeader = "X-Link-Password"

// RouterConfig carries the HTTP-layer knobs from configuration.
type RouterConfig struct {
	// CountryHeader is the upstream geo hint header (e.g. a CDN country header).
	CountryHeader string
	// Denial destinations; empty values produce JSON error responses instead.
	NotFoundURL string
	ExpiredURL  string
	PasswordURL string
}

// Handlers sets up the redirect surface
func Handlers(ctx context.Context, resolver *link.Resolver, recorder *click.Recorder, cfg RouterConfig, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("shortlink-edge", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Key resolved against the request host; the two-segment form serves
	// proxies that rewrite the host.
	r.Get("/{key}", redirect(resolver, recorder, cfg, hostDomain))
	r.Get("/{domain}/{key}", redirect(resolver, recorder, cfg, pathDomain))

	return r
}

type domainFunc func(r *http.Request) string

func hostDomain(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}

func pathDomain(r *http.Request) string {
	return chi.URLParam(r, "domain")
}

// redirect handles GET /{key} and GET /{domain}/{key}
func redirect(resolver *link.Resolver, recorder *click.Recorder, cfg RouterConfig, domain domainFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := link.Request{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
			Country:   r.Header.Get(cfg.CountryHeader),
			Password:  password(r),
			Timestamp: time.Now(),
		}

		outcome, err := resolver.Resolve(r.Context(), domain(r), chi.URLParam(r, "key"), req)
		if err != nil {
			// Cache and directory both unavailable; retryable.
			writeError(w, http.StatusServiceUnavailable, "link lookup unavailable")
			return
		}

		if outcome.Denied() {
			deny(w, r, cfg, outcome.Reason)
			return
		}

		/* Fire-and-forget: the recorder admits the click to its queues and
		 * returns; the redirect response never waits on a consumer
		 */
		recorder.Record(r.Context(), outcome.Link, req)

		http.Redirect(w, r, outcome.Target, http.StatusFound)
	}
}

func deny(w http.ResponseWriter, r *http.Request, cfg RouterConfig, reason link.Reason) {
	var page string
	var status int
	var message string

	switch reason {
	case link.ReasonNotFound:
		page, status, message = cfg.NotFoundURL, http.StatusNotFound, "link not found"
	case link.ReasonExpired:
		page, status, message = cfg.ExpiredURL, http.StatusGone, "link expired"
	case link.ReasonPasswordRequired:
		page, status, message = cfg.PasswordURL, http.StatusUnauthorized, "password required"
	default:
		page, status, message = "", http.StatusNotFound, "link not found"
	}

	if page != "" {
		http.Redirect(w, r, page, http.StatusFound)
		return
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// clientIP prefers the first X-Forwarded-For hop over the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func password(r *http.Request) string {
	if pw := r.URL.Query().Get("password"); pw != "" {
		return pw
	}
	return r.Header.Get(PasswordHeader)
}
