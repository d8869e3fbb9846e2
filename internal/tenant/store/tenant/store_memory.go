// Package tenant persists tenant aggregates.
package tenant

import (
	"context"
	"sort"
	"strings"
	"sync"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// InMemoryStore keeps tenants in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
}

// NewMemory constructs an empty in-memory tenant store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{tenants: make(map[id.TenantID]*models.Tenant)}
}

// Create inserts a tenant; sentinel.ErrConflict when the name is taken
// (case-insensitive).
func (s *InMemoryStore) Create(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Name, t.Name) {
			return sentinel.ErrConflict
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

// FindByID returns the tenant or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// List returns all tenants ordered by name.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListActiveIDs returns the IDs of active tenants.
func (s *InMemoryStore) ListActiveIDs(_ context.Context) ([]id.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []id.TenantID
	for _, t := range s.tenants {
		if t.IsActive() {
			out = append(out, t.ID)
		}
	}
	return out, nil
}

// Update replaces a stored tenant; sentinel.ErrNotFound when absent.
func (s *InMemoryStore) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}
