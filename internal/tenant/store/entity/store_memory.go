// Package entity persists legal entities.
package entity

import (
	"context"
	"sort"
	"sync"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// InMemoryStore keeps entities in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[id.EntityID]*models.Entity
}

// NewMemory constructs an empty in-memory entity store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{entities: make(map[id.EntityID]*models.Entity)}
}

// Create inserts an entity.
func (s *InMemoryStore) Create(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.entities[e.ID] = &cp
	return nil
}

// FindByID returns the entity or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// ListByTenant returns all of a tenant's entities ordered by name.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Entity, error) {
	return s.list(tenantID, false), nil
}

// ListActiveByTenant returns only a tenant's active entities.
func (s *InMemoryStore) ListActiveByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Entity, error) {
	return s.list(tenantID, true), nil
}

func (s *InMemoryStore) list(tenantID id.TenantID, activeOnly bool) []*models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Entity
	for _, e := range s.entities {
		if e.TenantID != tenantID {
			continue
		}
		if activeOnly && !e.IsActive() {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update replaces a stored entity; sentinel.ErrNotFound when absent.
func (s *InMemoryStore) Update(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *e
	s.entities[e.ID] = &cp
	return nil
}
