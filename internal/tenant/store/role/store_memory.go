// Package role persists role-code to user assignments.
package role

import (
	"context"
	"sort"
	"sync"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

type key struct {
	tenantID id.TenantID
	roleCode string
}

// InMemoryStore keeps role assignments in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	roles map[key]*models.RoleAssignment
}

// NewMemory constructs an empty in-memory role store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{roles: make(map[key]*models.RoleAssignment)}
}

// Upsert inserts or replaces the assignment for (tenant, role code).
func (s *InMemoryStore) Upsert(_ context.Context, r *models.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.roles[key{tenantID: r.TenantID, roleCode: r.RoleCode}] = &cp
	return nil
}

// Find returns the assignment or sentinel.ErrNotFound.
func (s *InMemoryStore) Find(_ context.Context, tenantID id.TenantID, roleCode string) (*models.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[key{tenantID: tenantID, roleCode: roleCode}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListByTenant returns a tenant's assignments ordered by role code.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.RoleAssignment
	for _, r := range s.roles {
		if r.TenantID == tenantID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleCode < out[j].RoleCode })
	return out, nil
}

// Delete removes an assignment; sentinel.ErrNotFound when absent.
func (s *InMemoryStore) Delete(_ context.Context, tenantID id.TenantID, roleCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{tenantID: tenantID, roleCode: roleCode}
	if _, ok := s.roles[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.roles, k)
	return nil
}
