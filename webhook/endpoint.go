package webhook

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TriggerLinkClicked is the event name emitted for every resolved redirect.
const TriggerLinkClicked = "link.clicked"

/* Endpoint represents a workspace's delivery target
 * Created and edited externally; this core mutates only the delivery
 * outcome fields (FailureCount, DisabledAt, LastSuccessAt)
 */
type Endpoint struct {
	ID            string
	WorkspaceID   string
	URL           string
	Secret        string
	Triggers      []string
	FailureCount  int
	DisabledAt    *time.Time
	LastSuccessAt *time.Time
}

// Disabled reports whether deliveries to this endpoint are suspended.
// Once set, no attempts happen until the endpoint is externally re-enabled.
func (e Endpoint) Disabled() bool {
	return e.DisabledAt != nil
}

// Subscribed reports whether the endpoint listens for the given event.
// Supports exact matching and prefix matching ("link.*" matches "link.clicked").
func (e Endpoint) Subscribed(event string) bool {
	if len(e.Triggers) == 0 {
		return false
	}
	for _, trigger := range e.Triggers {
		if trigger == event {
			return true
		}
		if strings.HasSuffix(trigger, ".*") {
			prefix := strings.TrimSuffix(trigger, "*")
			if strings.HasPrefix(event, prefix) && len(event) > len(prefix) {
				return true
			}
		}
	}
	return false
}

// Validate checks if the endpoint configuration is valid
func (e Endpoint) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("endpoint id cannot be empty")
	}
	if e.WorkspaceID == "" {
		return fmt.Errorf("workspace_id cannot be empty for endpoint %s", e.ID)
	}
	parsed, err := url.Parse(e.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid url for endpoint %s: %s", e.ID, e.URL)
	}
	if e.Secret == "" {
		return fmt.Errorf("secret cannot be empty for endpoint %s", e.ID)
	}
	for _, trigger := range e.Triggers {
		if err := validateTrigger(trigger); err != nil {
			return fmt.Errorf("invalid trigger for endpoint %s: %w", e.ID, err)
		}
	}
	return nil
}

// triggerPattern rules: hierarchical, full-stop delimited, [a-zA-Z0-9_],
// optional trailing ".*" wildcard.
func validateTrigger(trigger string) error {
	if trigger == "" {
		return fmt.Errorf("trigger cannot be empty")
	}
	trimmed := strings.TrimSuffix(trigger, ".*")
	if trimmed == "" {
		return fmt.Errorf("trigger cannot be a bare wildcard: %s", trigger)
	}
	for _, part := range strings.Split(trimmed, ".") {
		if part == "" {
			return fmt.Errorf("trigger has empty segment: %s", trigger)
		}
		for _, r := range part {
			if !isTriggerRune(r) {
				return fmt.Errorf("trigger must contain only [a-zA-Z0-9_.]: %s", trigger)
			}
		}
	}
	return nil
}

func isTriggerRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
