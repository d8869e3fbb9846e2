package models

import (
	"strings"
	"time"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// TenantStatus is the lifecycle state of a tenant organization.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// Tenant is the aggregate root for one customer organization. Entities,
// tenant-scoped masters and instances hang off it transitively.
//
// Invariants:
//   - Name is non-empty, at most 128 characters, unique case-insensitively
//   - Status transitions active ↔ inactive only
//   - Deactivation is enforced at read time: scheduled engines skip inactive
//     tenants rather than cascading status onto their rows
type Tenant struct {
	ID         id.TenantID  `json:"id"`
	Name       string       `json:"name"`
	Status     TenantStatus `json:"status"`
	SecretHash string       `json:"-"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewTenant validates and constructs an active tenant.
func NewTenant(tenantID id.TenantID, name string, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// CanDeactivate checks the active → inactive transition.
func (t *Tenant) CanDeactivate() error {
	if t.Status == TenantStatusInactive {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already inactive")
	}
	return nil
}

// ApplyDeactivation suspends the tenant. Scheduled engines stop generating,
// recomputing and escalating for it immediately; its data stays in place.
func (t *Tenant) ApplyDeactivation(now time.Time) {
	t.Status = TenantStatusInactive
	t.UpdatedAt = now
}

// CanReactivate checks the inactive → active transition.
func (t *Tenant) CanReactivate() error {
	if t.Status == TenantStatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	return nil
}

// ApplyReactivation resumes scheduled processing for the tenant.
func (t *Tenant) ApplyReactivation(now time.Time) {
	t.Status = TenantStatusActive
	t.UpdatedAt = now
}
