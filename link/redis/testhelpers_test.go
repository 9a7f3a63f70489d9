//go:build integration

package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/marcelsud/shortlink-edge/link"
	"github.com/marcelsud/shortlink-edge/link/redis"
)

/* Test Helpers for Redis Integration Tests
 * Following the pattern from: https://eltonminetto.dev/post/2024-02-15-using-test-helpers/
 */

// RedisContainer holds the Redis testcontainer and connection details
type RedisContainer struct {
	Container *testcontainersredis.RedisContainer
	Addr      string
}

// SetupRedisContainer creates and starts a Redis testcontainer
func SetupRedisContainer(t *testing.T, ctx context.Context) (*RedisContainer, func()) {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")
	addr = strings.TrimPrefix(addr, "redis://")

	// Wait for Redis to be ready
	time.Sleep(1 * time.Second)

	cleanup := func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}

	return &RedisContainer{Container: redisContainer, Addr: addr}, cleanup
}

// CreateTestCache creates a Redis link cache connected to the test container
func CreateTestCache(t *testing.T, addr string) *redis.Cache {
	t.Helper()

	cache, err := redis.NewCache(addr, "", 0, link.NewNormalizer(nil))
	require.NoError(t, err, "failed to create Redis cache")

	return cache
}

// GetKeyTTL returns the TTL of a Redis key in seconds
func GetKeyTTL(t *testing.T, addr string, key string) int64 {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()

	ttl, err := client.TTL(context.Background(), key).Result()
	require.NoError(t, err)

	return int64(ttl.Seconds())
}
