package models

import (
	"strings"
	"time"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// EntityStatus mirrors TenantStatus for legal entities.
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "active"
	EntityStatusInactive EntityStatus = "inactive"
)

// Entity is one legal entity of a tenant. Instance generation fans out across
// a tenant's active entities; deactivating an entity stops new instances
// without touching existing ones.
type Entity struct {
	ID        id.EntityID  `json:"id"`
	TenantID  id.TenantID  `json:"tenant_id"`
	Name      string       `json:"name"`
	Status    EntityStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewEntity validates and constructs an active entity.
func NewEntity(entityID id.EntityID, tenantID id.TenantID, name string, now time.Time) (*Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity name cannot be empty")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity must belong to a tenant")
	}
	return &Entity{
		ID:        entityID,
		TenantID:  tenantID,
		Name:      name,
		Status:    EntityStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (e *Entity) IsActive() bool {
	return e.Status == EntityStatusActive
}

// CanDeactivate checks the active → inactive transition.
func (e *Entity) CanDeactivate() error {
	if e.Status == EntityStatusInactive {
		return dErrors.New(dErrors.CodeInvariantViolation, "entity is already inactive")
	}
	return nil
}

// ApplyDeactivation removes the entity from generation fan-out.
func (e *Entity) ApplyDeactivation(now time.Time) {
	e.Status = EntityStatusInactive
	e.UpdatedAt = now
}

// CanReactivate checks the inactive → active transition.
func (e *Entity) CanReactivate() error {
	if e.Status == EntityStatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "entity is already active")
	}
	return nil
}

// ApplyReactivation re-includes the entity in generation fan-out.
func (e *Entity) ApplyReactivation(now time.Time) {
	e.Status = EntityStatusActive
	e.UpdatedAt = now
}
