package webhook_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcelsud/shortlink-edge/webhook"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status webhook.Status
		want   string
	}{
		{webhook.Pending, "pending"},
		{webhook.Delivering, "delivering"},
		{webhook.Delivered, "delivered"},
		{webhook.Retrying, "retrying"},
		{webhook.Disabled, "disabled"},
		{webhook.Status(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestNewStatus(t *testing.T) {
	assert.Equal(t, webhook.Delivered, webhook.NewStatus("delivered"))
	assert.Equal(t, webhook.Disabled, webhook.NewStatus("disabled"))
	assert.Equal(t, webhook.Pending, webhook.NewStatus("bogus"))
}

func TestStatusValidate(t *testing.T) {
	assert.NoError(t, webhook.Pending.Validate())
	assert.NoError(t, webhook.Disabled.Validate())
	assert.Error(t, webhook.Status(0).Validate())
	assert.Error(t, webhook.Status(999).Validate())
}

func TestStatusIsFinal(t *testing.T) {
	assert.True(t, webhook.Delivered.IsFinal())
	assert.True(t, webhook.Disabled.IsFinal())
	assert.False(t, webhook.Pending.IsFinal())
	assert.False(t, webhook.Delivering.IsFinal())
	assert.False(t, webhook.Retrying.IsFinal())
}
