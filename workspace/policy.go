// Package workspace exposes the per-workspace policy the redirect core
// consults; the policy source of truth lives outside this service.
package workspace

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/marcelsud/shortlink-edge/webhook"
)

// Policy answers whether a workspace has webhooks enabled for a trigger.
// Consulted once per click before enqueueing deliveries.
type Policy interface {
	IsWebhookEnabled(ctx context.Context, workspaceID, trigger string) bool
}

/* EndpointPolicy derives the answer from the configured endpoints:
 * enabled iff the workspace has at least one non-disabled endpoint
 * subscribed to the trigger
 */
type EndpointPolicy struct {
	endpoints webhook.Reader
	log       zerolog.Logger
}

// NewEndpointPolicy creates a policy backed by the webhook endpoint store
func NewEndpointPolicy(endpoints webhook.Reader, log zerolog.Logger) *EndpointPolicy {
	return &EndpointPolicy{
		endpoints: endpoints,
		log:       log,
	}
}

// IsWebhookEnabled reports whether any live endpoint subscribes to the trigger.
// Store failures disable fan-out for the click rather than failing the redirect.
func (p *EndpointPolicy) IsWebhookEnabled(ctx context.Context, workspaceID, trigger string) bool {
	endpoints, err := p.endpoints.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		p.log.Warn().Err(err).Str("workspace_id", workspaceID).
			Msg("listing webhook endpoints")
		return false
	}
	for _, ep := range endpoints {
		if !ep.Disabled() && ep.Subscribed(trigger) {
			return true
		}
	}
	return false
}

// Static is a fixed policy keyed by workspace ID, used in tests and
// single-tenant deployments.
type Static map[string]bool

func (s Static) IsWebhookEnabled(ctx context.Context, workspaceID, trigger string) bool {
	return s[workspaceID]
}
