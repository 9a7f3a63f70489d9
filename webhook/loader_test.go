package webhook_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/shortlink-edge/webhook"
)

func writeEndpointsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEndpoints(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeEndpointsFile(t, `
endpoints:
  - id: wh_acme_clicks
    workspace_id: ws_acme
    url: https://hooks.acme.example/shortlink
    secret: whsec_k3WY7a
    triggers:
      - link.clicked
  - id: wh_acme_all
    workspace_id: ws_acme
    url: https://hooks.acme.example/firehose
    secret: whsec_9hQx2p
    triggers:
      - link.*
`)
		endpoints, err := webhook.LoadEndpoints(path)

		require.NoError(t, err)
		require.Len(t, endpoints, 2)
		assert.Equal(t, "wh_acme_clicks", endpoints[0].ID)
		assert.True(t, endpoints[0].Subscribed(webhook.TriggerLinkClicked))
		assert.True(t, endpoints[1].Subscribed(webhook.TriggerLinkClicked))
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		path := writeEndpointsFile(t, `
endpoints:
  - id: wh_1
    workspace_id: ws_1
    url: https://hooks.example.com/a
    secret: whsec_a
    triggers: [link.clicked]
  - id: wh_1
    workspace_id: ws_1
    url: https://hooks.example.com/b
    secret: whsec_b
    triggers: [link.clicked]
`)
		_, err := webhook.LoadEndpoints(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate endpoint id")
	})

	t.Run("missing secret rejected", func(t *testing.T) {
		path := writeEndpointsFile(t, `
endpoints:
  - id: wh_1
    workspace_id: ws_1
    url: https://hooks.example.com/a
    triggers: [link.clicked]
`)
		_, err := webhook.LoadEndpoints(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret cannot be empty")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := webhook.LoadEndpoints(filepath.Join(t.TempDir(), "absent.yaml"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading endpoints file")
	})
}
