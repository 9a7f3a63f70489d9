package webhook

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEndpointNotFound is returned when an endpoint ID is unknown.
var ErrEndpointNotFound = errors.New("webhook endpoint not found")

/* Small, focused interfaces: the dispatcher only records delivery
 * outcomes, the workspace policy only reads
 */

// Reader provides read operations for webhook endpoints
type Reader interface {
	Get(ctx context.Context, id string) (Endpoint, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]Endpoint, error)
}

// Writer records delivery outcomes
type Writer interface {
	/* RecordSuccess resets the failure count and stamps the last
	 * successful delivery
	 */
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	/* RecordFailure increments the failure count and disables the
	 * endpoint; called only on terminal failure (retry budget exhausted)
	 */
	RecordFailure(ctx context.Context, id string, at time.Time) error
}

// Store combines endpoint reads and delivery-outcome writes
type Store interface {
	Reader
	Writer
}

/* MemoryStore is a mutex-guarded in-memory Store
 * Used for development, tests, and single-instance deployments where the
 * endpoint set is seeded from endpoints.yaml at boot
 */
type MemoryStore struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewMemoryStore creates an empty in-memory endpoint store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		endpoints: make(map[string]Endpoint),
	}
}

// Put inserts or replaces an endpoint; used to seed from configuration
func (s *MemoryStore) Put(ctx context.Context, ep Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.endpoints[ep.ID] = copyEndpoint(ep)
	s.mu.Unlock()
	return nil
}

// Get retrieves an endpoint by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, exists := s.endpoints[id]
	if !exists {
		return Endpoint{}, ErrEndpointNotFound
	}
	return copyEndpoint(ep), nil
}

// ListByWorkspace returns all endpoints owned by a workspace
func (s *MemoryStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var endpoints []Endpoint
	for _, ep := range s.endpoints {
		if ep.WorkspaceID == workspaceID {
			endpoints = append(endpoints, copyEndpoint(ep))
		}
	}
	return endpoints, nil
}

// RecordSuccess resets the failure count and stamps the success time
func (s *MemoryStore) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, exists := s.endpoints[id]
	if !exists {
		return ErrEndpointNotFound
	}
	ep.FailureCount = 0
	ep.LastSuccessAt = &at
	s.endpoints[id] = ep
	return nil
}

// RecordFailure increments the failure count and disables the endpoint
func (s *MemoryStore) RecordFailure(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, exists := s.endpoints[id]
	if !exists {
		return ErrEndpointNotFound
	}
	ep.FailureCount++
	if ep.DisabledAt == nil {
		ep.DisabledAt = &at
	}
	s.endpoints[id] = ep
	return nil
}

// Reenable clears the disabled state and failure count.
// This is the external re-enable operation; the dispatcher never calls it.
func (s *MemoryStore) Reenable(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, exists := s.endpoints[id]
	if !exists {
		return ErrEndpointNotFound
	}
	ep.FailureCount = 0
	ep.DisabledAt = nil
	s.endpoints[id] = ep
	return nil
}

func copyEndpoint(ep Endpoint) Endpoint {
	cp := ep
	if ep.Triggers != nil {
		cp.Triggers = append([]string(nil), ep.Triggers...)
	}
	if ep.DisabledAt != nil {
		t := *ep.DisabledAt
		cp.DisabledAt = &t
	}
	if ep.LastSuccessAt != nil {
		t := *ep.LastSuccessAt
		cp.LastSuccessAt = &t
	}
	return cp
}
