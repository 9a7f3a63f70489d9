package link

import (
	"context"
	"errors"
	"strings"
	"time"
)

/* Small, focused cache contract for the redirect hot path
 * Implementations must be safe for concurrent use; Set and Invalidate
 * are atomic per key so readers never observe partial records
 */

// ErrCacheMiss is returned by Cache.Get when no entry exists for the key.
var ErrCacheMiss = errors.New("link cache miss")

// DefaultCacheTTL is the expiry applied to cached links without webhooks.
const DefaultCacheTTL = 24 * time.Hour

type Cache interface {
	Get(ctx context.Context, domain, key string) (Record, error)
	Set(ctx context.Context, rec Record) error
	Invalidate(ctx context.Context, domain, key string) error
}

/* CacheTTL returns the expiry for a record
 * Links with webhook associations are kept without expiry since
 * re-fetching those associations is expensive; zero means no expiry
 */
func CacheTTL(rec Record) time.Duration {
	if len(rec.WebhookIDs) > 0 {
		return 0
	}
	return DefaultCacheTTL
}

/* Normalizer lower-cases cache keys unless the domain opted in to
 * case-sensitive keys via a fixed allow-list
 */
type Normalizer struct {
	caseSensitive map[string]struct{}
}

// NewNormalizer creates a Normalizer from the case-sensitive domain allow-list
func NewNormalizer(domains []string) *Normalizer {
	sensitive := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		sensitive[strings.ToLower(d)] = struct{}{}
	}
	return &Normalizer{caseSensitive: sensitive}
}

// Normalize returns the canonical (domain, key) pair used for lookups.
// Domains are always lower-cased; keys only for case-insensitive domains.
func (n *Normalizer) Normalize(domain, key string) (string, string) {
	domain = strings.ToLower(domain)
	if n == nil {
		return domain, strings.ToLower(key)
	}
	if _, ok := n.caseSensitive[domain]; ok {
		return domain, key
	}
	return domain, strings.ToLower(key)
}
