// Package instance persists period-bound compliance instances.
//
// Two store guarantees anchor the engines' concurrency model:
//   - CreateIfAbsent enforces the (master, entity, period) uniqueness
//     invariant, so racing generator runs produce at most one surviving row
//   - UpdateCAS applies optimistic compare-and-set on the row version, so a
//     stale recomputation never silently overwrites a concurrent manual
//     transition
package instance

import (
	"context"
	"sync"
	"time"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

type uniqueKey struct {
	masterID    id.MasterID
	entityID    id.EntityID
	periodStart time.Time
}

func keyOf(inst *models.Instance) uniqueKey {
	return uniqueKey{
		masterID:    inst.MasterID,
		entityID:    inst.EntityID,
		periodStart: inst.PeriodStart.UTC(),
	}
}

// InMemoryStore keeps instances in process memory with the same contract as
// the postgres store.
type InMemoryStore struct {
	mu        sync.RWMutex
	instances map[id.InstanceID]*models.Instance
	byKey     map[uniqueKey]id.InstanceID
}

// NewMemory constructs an empty in-memory instance store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		instances: make(map[id.InstanceID]*models.Instance),
		byKey:     make(map[uniqueKey]id.InstanceID),
	}
}

func clone(inst *models.Instance) *models.Instance {
	cp := *inst
	return &cp
}

// CreateIfAbsent inserts the instance unless a row already satisfies the
// (master, entity, period) uniqueness invariant. A duplicate is not an error:
// created=false and the caller counts it as a no-op.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, inst *models.Instance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(inst)
	if _, exists := s.byKey[key]; exists {
		return false, nil
	}
	cp := clone(inst)
	cp.Version = 1
	s.instances[inst.ID] = cp
	s.byKey[key] = inst.ID
	inst.Version = 1
	return true, nil
}

// FindByKey looks an instance up by its uniqueness key.
func (s *InMemoryStore) FindByKey(_ context.Context, masterID id.MasterID, entityID id.EntityID, periodStart time.Time) (*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instanceID, ok := s.byKey[uniqueKey{masterID: masterID, entityID: entityID, periodStart: periodStart.UTC()}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.instances[instanceID]), nil
}

// FindByID returns the instance or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, instanceID id.InstanceID) (*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(inst), nil
}

// UpdateCAS replaces the stored row only if its version still matches
// expectedVersion; sentinel.ErrConflict when a concurrent writer won the race.
// On success the stored (and passed) version is incremented.
func (s *InMemoryStore) UpdateCAS(_ context.Context, inst *models.Instance, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.instances[inst.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	cp := clone(inst)
	cp.Version = expectedVersion + 1
	s.instances[inst.ID] = cp
	inst.Version = cp.Version
	return nil
}

// ListNonTerminalByTenant returns the tenant's instances that are still in
// flight.
func (s *InMemoryStore) ListNonTerminalByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Instance
	for _, inst := range s.instances {
		if inst.TenantID == tenantID && !inst.IsTerminal() {
			out = append(out, clone(inst))
		}
	}
	return out, nil
}

// ListWithBlockingRef returns the tenant's instances carrying a blocking
// reference, regardless of status.
func (s *InMemoryStore) ListWithBlockingRef(_ context.Context, tenantID id.TenantID) ([]*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Instance
	for _, inst := range s.instances {
		if inst.TenantID == tenantID && inst.BlockedBy != nil {
			out = append(out, clone(inst))
		}
	}
	return out, nil
}

// ListByTenant returns all of a tenant's instances.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Instance
	for _, inst := range s.instances {
		if inst.TenantID == tenantID {
			out = append(out, clone(inst))
		}
	}
	return out, nil
}

// CountByTenant returns the tenant's instance count. The dependency resolver
// uses it to bound chain walks.
func (s *InMemoryStore) CountByTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, inst := range s.instances {
		if inst.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

// PurgeTenant removes a tenant's instances. Explicit deletion routine for
// administrative offboarding; no engine calls this.
func (s *InMemoryStore) PurgeTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for instanceID, inst := range s.instances {
		if inst.TenantID == tenantID {
			delete(s.byKey, keyOf(inst))
			delete(s.instances, instanceID)
			removed++
		}
	}
	return removed, nil
}
