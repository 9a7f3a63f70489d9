package link

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

/* Record represents a short link as seen by the redirect path
 * Uses value semantics as it represents data, not behavior
 * Created and mutated by the link-management plane; read-only here
 */
type Record struct {
	ID          string
	Domain      string
	Key         string
	WorkspaceID string
	TargetURL   string
	ExpiresAt   *time.Time
	// Password is the plaintext password when sourced from the directory.
	// Caches never store the value, only PasswordSet.
	Password    string
	PasswordSet bool
	IOSURL      string
	AndroidURL  string
	GeoRules    map[string]string
	WebhookIDs  []string
}

// Protected reports whether the link requires a password to resolve.
func (r Record) Protected() bool {
	return r.PasswordSet || r.Password != ""
}

// Expired reports whether the link has expired as of now.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Validate checks the record is well formed enough to serve redirects
func (r Record) Validate() error {
	if r.Domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if r.Key == "" {
		return fmt.Errorf("key cannot be empty for domain %s", r.Domain)
	}
	if err := validateTargetURL(r.TargetURL); err != nil {
		return fmt.Errorf("invalid target_url for %s/%s: %w", r.Domain, r.Key, err)
	}
	if r.IOSURL != "" {
		if err := validateTargetURL(r.IOSURL); err != nil {
			return fmt.Errorf("invalid ios_url for %s/%s: %w", r.Domain, r.Key, err)
		}
	}
	if r.AndroidURL != "" {
		if err := validateTargetURL(r.AndroidURL); err != nil {
			return fmt.Errorf("invalid android_url for %s/%s: %w", r.Domain, r.Key, err)
		}
	}
	for country, target := range r.GeoRules {
		if len(country) != 2 || country != strings.ToUpper(country) {
			return fmt.Errorf("geo rule country must be an upper-case ISO 3166-1 alpha-2 code for %s/%s: %s", r.Domain, r.Key, country)
		}
		if err := validateTargetURL(target); err != nil {
			return fmt.Errorf("invalid geo target for %s/%s country %s: %w", r.Domain, r.Key, country, err)
		}
	}
	return nil
}

// CacheableCopy returns a deep copy of the record safe to place in a cache.
// The password value is stripped, only its presence is retained.
func (r Record) CacheableCopy() Record {
	cp := r
	cp.PasswordSet = r.Protected()
	cp.Password = ""
	if r.GeoRules != nil {
		cp.GeoRules = make(map[string]string, len(r.GeoRules))
		for k, v := range r.GeoRules {
			cp.GeoRules[k] = v
		}
	}
	if r.WebhookIDs != nil {
		cp.WebhookIDs = append([]string(nil), r.WebhookIDs...)
	}
	return cp
}

func validateTargetURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url host cannot be empty: %s", raw)
	}
	return nil
}
