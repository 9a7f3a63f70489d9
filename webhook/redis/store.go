// Package redis implements webhook.Store on Redis hashes so delivery
// outcomes survive restarts and are shared across instances.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelsud/shortlink-edge/webhook"
)

/* Redis implementation of webhook.Store
 * Uses one hash per endpoint plus a per-workspace index set
 * Key naming: endpoint:{id} and endpoints:ws:{workspace_id}
 */

const (
	hashPrefix     = "endpoint"
	workspaceIndex = "endpoints:ws"
)

type Store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed endpoint store
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing Redis client
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Put inserts or replaces an endpoint; used to seed from configuration
func (s *Store) Put(ctx context.Context, ep webhook.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}

	triggersJSON, err := json.Marshal(ep.Triggers)
	if err != nil {
		return fmt.Errorf("marshaling triggers: %w", err)
	}

	fields := map[string]interface{}{
		"id":            ep.ID,
		"workspace_id":  ep.WorkspaceID,
		"url":           ep.URL,
		"secret":        ep.Secret,
		"triggers":      string(triggersJSON),
		"failure_count": ep.FailureCount,
	}
	/* Timestamp fields are present only when set; RecordFailure relies on
	 * HSETNX to keep the first disabled_at, which only works if enabled
	 * endpoints carry no disabled_at field at all
	 */
	if ep.DisabledAt != nil {
		fields["disabled_at"] = ep.DisabledAt.Unix()
	}
	if ep.LastSuccessAt != nil {
		fields["last_success_at"] = ep.LastSuccessAt.Unix()
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.hashKey(ep.ID))
	pipe.HSet(ctx, s.hashKey(ep.ID), fields)
	pipe.SAdd(ctx, s.workspaceKey(ep.WorkspaceID), ep.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing endpoint: %w", err)
	}
	return nil
}

// Get retrieves an endpoint by ID
func (s *Store) Get(ctx context.Context, id string) (webhook.Endpoint, error) {
	data, err := s.client.HGetAll(ctx, s.hashKey(id)).Result()
	if err != nil {
		return webhook.Endpoint{}, fmt.Errorf("getting endpoint: %w", err)
	}
	if len(data) == 0 {
		return webhook.Endpoint{}, webhook.ErrEndpointNotFound
	}
	return endpointFromHash(data)
}

// ListByWorkspace returns all endpoints owned by a workspace
func (s *Store) ListByWorkspace(ctx context.Context, workspaceID string) ([]webhook.Endpoint, error) {
	ids, err := s.client.SMembers(ctx, s.workspaceKey(workspaceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing workspace endpoints: %w", err)
	}

	var endpoints []webhook.Endpoint
	for _, id := range ids {
		ep, err := s.Get(ctx, id)
		if err == webhook.ErrEndpointNotFound {
			// Stale index entry, skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// RecordSuccess resets the failure count and stamps the success time
func (s *Store) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	exists, err := s.client.Exists(ctx, s.hashKey(id)).Result()
	if err != nil {
		return fmt.Errorf("checking endpoint: %w", err)
	}
	if exists == 0 {
		return webhook.ErrEndpointNotFound
	}

	err = s.client.HSet(ctx, s.hashKey(id), map[string]interface{}{
		"failure_count":   0,
		"last_success_at": at.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("recording delivery success: %w", err)
	}
	return nil
}

// RecordFailure increments the failure count and disables the endpoint
func (s *Store) RecordFailure(ctx context.Context, id string, at time.Time) error {
	exists, err := s.client.Exists(ctx, s.hashKey(id)).Result()
	if err != nil {
		return fmt.Errorf("checking endpoint: %w", err)
	}
	if exists == 0 {
		return webhook.ErrEndpointNotFound
	}

	if err := s.client.HIncrBy(ctx, s.hashKey(id), "failure_count", 1).Err(); err != nil {
		return fmt.Errorf("incrementing failure count: %w", err)
	}
	if err := s.client.HSetNX(ctx, s.hashKey(id), "disabled_at", at.Unix()).Err(); err != nil {
		return fmt.Errorf("disabling endpoint: %w", err)
	}
	return nil
}

// Reenable clears the disabled state and failure count (external operation)
func (s *Store) Reenable(ctx context.Context, id string) error {
	exists, err := s.client.Exists(ctx, s.hashKey(id)).Result()
	if err != nil {
		return fmt.Errorf("checking endpoint: %w", err)
	}
	if exists == 0 {
		return webhook.ErrEndpointNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hashKey(id), "failure_count", 0)
	pipe.HDel(ctx, s.hashKey(id), "disabled_at")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("re-enabling endpoint: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *Store) hashKey(id string) string {
	return fmt.Sprintf("%s:%s", hashPrefix, id)
}

func (s *Store) workspaceKey(workspaceID string) string {
	return fmt.Sprintf("%s:%s", workspaceIndex, workspaceID)
}

func endpointFromHash(data map[string]string) (webhook.Endpoint, error) {
	ep := webhook.Endpoint{
		ID:           data["id"],
		WorkspaceID:  data["workspace_id"],
		URL:          data["url"],
		Secret:       data["secret"],
		FailureCount: int(parseInt64(data["failure_count"])),
	}

	if triggersJSON, ok := data["triggers"]; ok && triggersJSON != "" {
		if err := json.Unmarshal([]byte(triggersJSON), &ep.Triggers); err != nil {
			return webhook.Endpoint{}, fmt.Errorf("unmarshaling triggers: %w", err)
		}
	}
	if disabled := parseInt64(data["disabled_at"]); disabled > 0 {
		t := time.Unix(disabled, 0)
		ep.DisabledAt = &t
	}
	if success := parseInt64(data["last_success_at"]); success > 0 {
		t := time.Unix(success, 0)
		ep.LastSuccessAt = &t
	}
	return ep, nil
}

func parseInt64(s string) int64 {
	result, _ := strconv.ParseInt(s, 10, 64)
	return result
}
