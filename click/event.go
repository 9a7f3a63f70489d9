package click

import "time"

/* Event represents one resolved redirect
 * Immutable after creation; consumed once by the analytics queue and then
 * discarded from the hot path (durable storage is the sink's concern)
 */
type Event struct {
	ClickID     string    `json:"click_id"`
	LinkID      string    `json:"link_id"`
	WorkspaceID string    `json:"workspace_id"`
	Domain      string    `json:"domain"`
	Key         string    `json:"key"`
	TargetURL   string    `json:"target_url"`
	Timestamp   time.Time `json:"timestamp"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	Referrer    string    `json:"referrer"`
	Country     string    `json:"country"`
	Device      string    `json:"device"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Bot         bool      `json:"bot"`
	// Unique marks clicks that count toward unique-visitor totals.
	// Bot clicks are recorded but never unique.
	Unique bool `json:"unique"`
}
