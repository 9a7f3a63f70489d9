// Package redis implements link.Cache on Redis hashes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelsud/shortlink-edge/link"
)

/* Redis implementation of link.Cache
 * Uses one hash per link for atomic per-key replacement
 * Key naming: link:{domain}:{key}
 */

const keyPrefix = "link"

type Cache struct {
	client     *redis.Client
	normalizer *link.Normalizer
}

// NewCache creates a Redis-backed link cache
func NewCache(addr, password string, db int, normalizer *link.Normalizer) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Cache{
		client:     client,
		normalizer: normalizer,
	}, nil
}

// Get retrieves a cached link record
func (c *Cache) Get(ctx context.Context, domain, key string) (link.Record, error) {
	hashKey := c.hashKey(domain, key)

	data, err := c.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return link.Record{}, fmt.Errorf("getting cached link: %w", err)
	}
	if len(data) == 0 {
		return link.Record{}, link.ErrCacheMiss
	}

	rec := link.Record{
		ID:          data["id"],
		Domain:      data["domain"],
		Key:         data["key"],
		WorkspaceID: data["workspace_id"],
		TargetURL:   data["target_url"],
		PasswordSet: data["password_set"] == "1",
		IOSURL:      data["ios_url"],
		AndroidURL:  data["android_url"],
	}

	if expires := parseInt64(data["expires_at"]); expires > 0 {
		t := time.Unix(expires, 0)
		rec.ExpiresAt = &t
	}
	if geoJSON, ok := data["geo_rules"]; ok && geoJSON != "" {
		if err := json.Unmarshal([]byte(geoJSON), &rec.GeoRules); err != nil {
			return link.Record{}, fmt.Errorf("unmarshaling geo rules: %w", err)
		}
	}
	if webhooksJSON, ok := data["webhook_ids"]; ok && webhooksJSON != "" {
		if err := json.Unmarshal([]byte(webhooksJSON), &rec.WebhookIDs); err != nil {
			return link.Record{}, fmt.Errorf("unmarshaling webhook ids: %w", err)
		}
	}

	return rec, nil
}

// Set stores a link record, applying the webhook-aware TTL policy
func (c *Cache) Set(ctx context.Context, rec link.Record) error {
	cp := rec.CacheableCopy()
	hashKey := c.hashKey(cp.Domain, cp.Key)

	fields := map[string]interface{}{
		"id":           cp.ID,
		"domain":       cp.Domain,
		"key":          cp.Key,
		"workspace_id": cp.WorkspaceID,
		"target_url":   cp.TargetURL,
		"password_set": boolField(cp.PasswordSet),
		"ios_url":      cp.IOSURL,
		"android_url":  cp.AndroidURL,
		"expires_at":   int64(0),
	}
	if cp.ExpiresAt != nil {
		fields["expires_at"] = cp.ExpiresAt.Unix()
	}
	if len(cp.GeoRules) > 0 {
		geoJSON, err := json.Marshal(cp.GeoRules)
		if err != nil {
			return fmt.Errorf("marshaling geo rules: %w", err)
		}
		fields["geo_rules"] = string(geoJSON)
	}
	if len(cp.WebhookIDs) > 0 {
		webhooksJSON, err := json.Marshal(cp.WebhookIDs)
		if err != nil {
			return fmt.Errorf("marshaling webhook ids: %w", err)
		}
		fields["webhook_ids"] = string(webhooksJSON)
	}

	/* Replace atomically: writing the hash and its expiry in one
	 * transaction so concurrent readers never see a partial record
	 */
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, hashKey)
	pipe.HSet(ctx, hashKey, fields)
	if ttl := link.CacheTTL(cp); ttl > 0 {
		pipe.Expire(ctx, hashKey, ttl)
	} else {
		pipe.Persist(ctx, hashKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing cached link: %w", err)
	}
	return nil
}

// Invalidate removes a link from the cache
func (c *Cache) Invalidate(ctx context.Context, domain, key string) error {
	if err := c.client.Del(ctx, c.hashKey(domain, key)).Err(); err != nil {
		return fmt.Errorf("invalidating cached link: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close(ctx context.Context) error {
	return c.client.Close()
}

// Client returns the underlying Redis client for advanced operations
func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) hashKey(domain, key string) string {
	domain, key = c.normalizer.Normalize(domain, key)
	return fmt.Sprintf("%s:%s:%s", keyPrefix, domain, key)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseInt64(s string) int64 {
	result, _ := strconv.ParseInt(s, 10, 64)
	return result
}
