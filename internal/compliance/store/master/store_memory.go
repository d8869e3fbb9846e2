// Package master persists obligation master templates.
package master

import (
	"context"
	"strings"
	"sync"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// InMemoryStore keeps masters in process memory. Used in unit tests and
// development mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	masters map[id.MasterID]*models.Master
}

// NewMemory constructs an empty in-memory master store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{masters: make(map[id.MasterID]*models.Master)}
}

func scopeKey(tenantID *id.TenantID, code string) string {
	scope := "global"
	if tenantID != nil {
		scope = tenantID.String()
	}
	return scope + "/" + strings.ToLower(code)
}

// Create inserts a master; sentinel.ErrConflict when the code is already taken
// within the tenant scope.
func (s *InMemoryStore) Create(_ context.Context, m *models.Master) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopeKey(m.TenantID, m.Code)
	for _, existing := range s.masters {
		if scopeKey(existing.TenantID, existing.Code) == key {
			return sentinel.ErrConflict
		}
	}
	cp := *m
	s.masters[m.ID] = &cp
	return nil
}

// FindByID returns the master or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, masterID id.MasterID) (*models.Master, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.masters[masterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// FindByCode resolves a dependency code within a tenant scope, falling back to
// the global scope when the tenant has no master with that code.
func (s *InMemoryStore) FindByCode(_ context.Context, tenantID id.TenantID, code string) (*models.Master, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var global *models.Master
	for _, m := range s.masters {
		if !strings.EqualFold(m.Code, code) {
			continue
		}
		if m.TenantID == nil {
			cp := *m
			global = &cp
			continue
		}
		if *m.TenantID == tenantID {
			cp := *m
			return &cp, nil
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListActiveByFrequency returns active masters whose frequency is in freqs.
func (s *InMemoryStore) ListActiveByFrequency(_ context.Context, freqs ...models.Frequency) ([]*models.Master, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[models.Frequency]bool, len(freqs))
	for _, f := range freqs {
		want[f] = true
	}
	var out []*models.Master
	for _, m := range s.masters {
		if m.Active && want[m.Frequency] {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListByTenant returns masters visible to a tenant: its own plus global ones.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Master, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Master
	for _, m := range s.masters {
		if m.TenantID == nil || *m.TenantID == tenantID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Update replaces a stored master; sentinel.ErrNotFound when absent.
func (s *InMemoryStore) Update(_ context.Context, m *models.Master) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.masters[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *m
	s.masters[m.ID] = &cp
	return nil
}
