package link

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/useragent"
)

/* Reason enumerates why a resolution was denied
 * Follows first-match-wins ordering: NotFound, Expired, PasswordRequired
 */
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNotFound
	ReasonExpired
	ReasonPasswordRequired
)

// String returns the string representation of the denial reason
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotFound:
		return "not_found"
	case ReasonExpired:
		return "expired"
	case ReasonPasswordRequired:
		return "password_required"
	default:
		return "unknown"
	}
}

// Validate checks if the reason is valid
func (r Reason) Validate() error {
	if r < ReasonNone || r > ReasonPasswordRequired {
		return fmt.Errorf("invalid denial reason: %d", int(r))
	}
	return nil
}

/* Outcome is the explicit result of a resolution: a redirect target or a
 * denial reason, never both. Failure paths are enumerated, not thrown.
 */
type Outcome struct {
	Target string
	Link   Record
	Reason Reason
}

// Denied reports whether the outcome is a denial rather than a redirect.
func (o Outcome) Denied() bool {
	return o.Reason != ReasonNone
}

// Request carries the per-request context needed to evaluate targeting rules.
type Request struct {
	IP        string
	UserAgent string
	Referrer  string
	// Country is the upstream geo hint (ISO 3166-1 alpha-2), may be empty.
	Country string
	// Password is the password supplied via query or header, may be empty.
	Password  string
	Timestamp time.Time
}

/* Resolver looks up a link through the cache (falling back to the
 * authoritative directory) and evaluates expiry, password, device and geo
 * rules. Rule evaluation is pure computation; only the cache and directory
 * lookups may incur I/O.
 */
type Resolver struct {
	cache      Cache
	directory  Directory
	normalizer *Normalizer
	log        zerolog.Logger
	nowFunc    func() time.Time

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	redirects   atomic.Uint64
	denials     atomic.Uint64
}

// NewResolver creates a resolver with dependency injection so tests can
// substitute in-memory fakes for the cache and directory.
func NewResolver(cache Cache, directory Directory, normalizer *Normalizer, log zerolog.Logger) *Resolver {
	return &Resolver{
		cache:      cache,
		directory:  directory,
		normalizer: normalizer,
		log:        log,
		nowFunc:    time.Now,
	}
}

// Resolve maps a (domain, key) pair to a redirect target or a denial.
// Absence of a targeting rule falls through to the default target; only
// not-found, expiry and password produce denials.
func (r *Resolver) Resolve(ctx context.Context, domain, key string, req Request) (Outcome, error) {
	domain, key = r.normalizer.Normalize(domain, key)

	rec, found, err := r.lookup(ctx, domain, key)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		r.denials.Add(1)
		return Outcome{Reason: ReasonNotFound}, nil
	}

	now := req.Timestamp
	if now.IsZero() {
		now = r.nowFunc()
	}
	if rec.Expired(now) {
		r.denials.Add(1)
		return Outcome{Link: rec, Reason: ReasonExpired}, nil
	}

	if rec.Protected() {
		ok, err := r.checkPassword(ctx, rec, req.Password)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			r.denials.Add(1)
			return Outcome{Link: rec, Reason: ReasonPasswordRequired}, nil
		}
	}

	r.redirects.Add(1)
	return Outcome{Target: target(rec, req), Link: rec}, nil
}

// CacheHits returns the number of resolutions served from the cache.
func (r *Resolver) CacheHits() uint64 { return r.cacheHits.Load() }

// CacheMisses returns the number of resolutions that fell through to the directory.
func (r *Resolver) CacheMisses() uint64 { return r.cacheMisses.Load() }

// Redirects returns the number of successful resolutions.
func (r *Resolver) Redirects() uint64 { return r.redirects.Load() }

// Denials returns the number of denied resolutions.
func (r *Resolver) Denials() uint64 { return r.denials.Load() }

/* lookup reads through the cache and back-fills it on a directory hit.
 * A cache backend failure degrades to a direct directory lookup; only
 * both failing propagates an error to the caller.
 */
func (r *Resolver) lookup(ctx context.Context, domain, key string) (Record, bool, error) {
	rec, err := r.cache.Get(ctx, domain, key)
	switch {
	case err == nil:
		r.cacheHits.Add(1)
		return rec, true, nil
	case errors.Is(err, ErrCacheMiss):
		r.cacheMisses.Add(1)
	default:
		r.cacheMisses.Add(1)
		r.log.Warn().Err(err).Str("domain", domain).Str("key", key).
			Msg("link cache unavailable, falling back to directory")
	}

	rec, err = r.directory.Lookup(ctx, domain, key)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("looking up link %s/%s: %w", domain, key, err)
	}

	if err := r.cache.Set(ctx, rec.CacheableCopy()); err != nil {
		// Cache population is best effort on the hot path.
		r.log.Warn().Err(err).Str("domain", domain).Str("key", key).
			Msg("populating link cache")
	}
	return rec, true, nil
}

/* checkPassword compares the supplied password with the authoritative one.
 * Cached records carry only the presence flag, so a cache hit on a
 * protected link costs one directory lookup when a password is supplied.
 */
func (r *Resolver) checkPassword(ctx context.Context, rec Record, supplied string) (bool, error) {
	if supplied == "" {
		return false, nil
	}
	expected := rec.Password
	if expected == "" {
		authoritative, err := r.directory.Lookup(ctx, rec.Domain, rec.Key)
		if err != nil {
			return false, fmt.Errorf("verifying password for %s/%s: %w", rec.Domain, rec.Key, err)
		}
		expected = authoritative.Password
	}
	if expected == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1, nil
}

// target evaluates device and geo overrides, first matching rule wins.
func target(rec Record, req Request) string {
	if rec.IOSURL != "" && useragent.IsIOS(req.UserAgent) {
		return rec.IOSURL
	}
	if rec.AndroidURL != "" && useragent.IsAndroid(req.UserAgent) {
		return rec.AndroidURL
	}
	if len(rec.GeoRules) > 0 && req.Country != "" {
		if url, ok := rec.GeoRules[strings.ToUpper(req.Country)]; ok {
			return url
		}
	}
	return rec.TargetURL
}
