package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/shortlink-edge/metrics"
)

type stubResolver struct{}

func (stubResolver) Redirects() uint64   { return 10 }
func (stubResolver) Denials() uint64     { return 2 }
func (stubResolver) CacheHits() uint64   { return 8 }
func (stubResolver) CacheMisses() uint64 { return 4 }

type stubQueue struct{}

func (stubQueue) Depth() int             { return 3 }
func (stubQueue) Capacity() int          { return 4096 }
func (stubQueue) Ingested() uint64       { return 9 }
func (stubQueue) Dropped() uint64        { return 1 }
func (stubQueue) FlushedBatches() uint64 { return 5 }
func (stubQueue) DroppedBatches() uint64 { return 0 }

type stubDispatcher struct{}

func (stubDispatcher) Depth() int                { return 1 }
func (stubDispatcher) Capacity() int             { return 1024 }
func (stubDispatcher) Delivered() uint64         { return 6 }
func (stubDispatcher) Retried() uint64           { return 2 }
func (stubDispatcher) Dropped() uint64           { return 0 }
func (stubDispatcher) Skipped() uint64           { return 1 }
func (stubDispatcher) Aborted() uint64           { return 0 }
func (stubDispatcher) DisabledEndpoints() uint64 { return 1 }

func TestCoreCollector(t *testing.T) {
	collector := metrics.NewCoreCollector(stubResolver{}, stubQueue{}, stubDispatcher{})

	snapshot, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(10), snapshot.Redirects)
	assert.Equal(t, uint64(2), snapshot.Denials)
	assert.Equal(t, uint64(8), snapshot.CacheHits)
	assert.Equal(t, uint64(4), snapshot.CacheMisses)

	assert.Equal(t, int64(3), snapshot.AnalyticsQueueDepth)
	assert.Equal(t, int64(4096), snapshot.AnalyticsQueueCapacity)
	assert.Equal(t, uint64(9), snapshot.AnalyticsIngested)
	assert.Equal(t, uint64(1), snapshot.AnalyticsDropped)
	assert.Equal(t, uint64(5), snapshot.AnalyticsBatchesFlushed)

	assert.Equal(t, int64(1), snapshot.WebhookQueueDepth)
	assert.Equal(t, int64(1024), snapshot.WebhookQueueCapacity)
	assert.Equal(t, uint64(6), snapshot.WebhookDelivered)
	assert.Equal(t, uint64(2), snapshot.WebhookRetried)
	assert.Equal(t, uint64(1), snapshot.WebhookSkipped)
	assert.Equal(t, uint64(1), snapshot.WebhookEndpointsDisabled)

	assert.False(t, snapshot.Timestamp.IsZero())
}
