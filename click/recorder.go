package click

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/link"
	"github.com/marcelsud/shortlink-edge/useragent"
	"github.com/marcelsud/shortlink-edge/webhook"
	"github.com/marcelsud/shortlink-edge/workspace"
)

/* Small interfaces written for the recorder's needs, not for the
 * implementations; both queues are in-process and non-blocking
 */

// Submitter admits click events to the analytics ingestion queue.
type Submitter interface {
	Submit(ev Event) error
}

// Enqueuer submits webhook delivery requests to the dispatcher.
type Enqueuer interface {
	Enqueue(webhookID, event string, payload []byte) error
}

/* Recorder assigns click identifiers and fans a click out to the
 * analytics queue and (policy permitting) the webhook dispatcher.
 * Record returns as soon as the event is admitted or dropped; it never
 * waits on a consumer and never fails the redirect.
 */
type Recorder struct {
	queue      Submitter
	dispatcher Enqueuer
	policy     workspace.Policy
	log        zerolog.Logger
	nowFunc    func() time.Time
}

// NewRecorder creates a click recorder with dependency injection
func NewRecorder(queue Submitter, dispatcher Enqueuer, policy workspace.Policy, log zerolog.Logger) *Recorder {
	return &Recorder{
		queue:      queue,
		dispatcher: dispatcher,
		policy:     policy,
		log:        log,
		nowFunc:    time.Now,
	}
}

// clickedPayload is the webhook body for link.clicked deliveries.
type clickedPayload struct {
	Event     string    `json:"event"`
	Click     Event     `json:"click"`
	Timestamp time.Time `json:"timestamp"`
}

// Record issues a unique click ID, classifies the user agent and enqueues
// the event. Analytics backpressure drops the event and is only logged;
// the redirect already succeeded and must stay fast.
func (r *Recorder) Record(ctx context.Context, rec link.Record, req link.Request) Event {
	now := req.Timestamp
	if now.IsZero() {
		now = r.nowFunc()
	}

	cls := useragent.Classify(req.UserAgent)
	ev := Event{
		ClickID:     uuid.New().String(),
		LinkID:      rec.ID,
		WorkspaceID: rec.WorkspaceID,
		Domain:      rec.Domain,
		Key:         rec.Key,
		TargetURL:   rec.TargetURL,
		Timestamp:   now,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Referrer:    req.Referrer,
		Country:     req.Country,
		Device:      cls.Device,
		Browser:     cls.Browser,
		OS:          cls.OS,
		Bot:         cls.Bot,
		Unique:      !cls.Bot,
	}

	if err := r.queue.Submit(ev); err != nil {
		r.log.Warn().Err(err).Str("click_id", ev.ClickID).Str("link_id", ev.LinkID).
			Msg("dropping click event")
	}

	if len(rec.WebhookIDs) > 0 && r.policy.IsWebhookEnabled(ctx, rec.WorkspaceID, webhook.TriggerLinkClicked) {
		r.fanOutWebhooks(rec, ev, now)
	}

	return ev
}

func (r *Recorder) fanOutWebhooks(rec link.Record, ev Event, now time.Time) {
	payload, err := json.Marshal(clickedPayload{
		Event:     webhook.TriggerLinkClicked,
		Click:     ev,
		Timestamp: now.UTC(),
	})
	if err != nil {
		r.log.Error().Err(err).Str("click_id", ev.ClickID).Msg("marshaling webhook payload")
		return
	}

	for _, webhookID := range rec.WebhookIDs {
		if err := r.dispatcher.Enqueue(webhookID, webhook.TriggerLinkClicked, payload); err != nil {
			r.log.Warn().Err(err).Str("webhook_id", webhookID).Str("click_id", ev.ClickID).
				Msg("dropping webhook delivery")
		}
	}
}
