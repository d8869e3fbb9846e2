// Package ports declares the external collaborators the compliance engines
// consume. Implementations live in internal/tenant (directory) and
// internal/notify (notifier); tests substitute fakes.
package ports

import (
	"context"
	"time"

	id "obligo/pkg/domain"
)

// EntityRef is the slice of an entity the engines need.
type EntityRef struct {
	ID       id.EntityID
	TenantID id.TenantID
	Name     string
}

// Directory lists active tenants/entities and resolves role codes to users.
type Directory interface {
	ListActiveTenantIDs(ctx context.Context) ([]id.TenantID, error)
	// ListActiveEntities returns the active entities of one tenant.
	ListActiveEntities(ctx context.Context, tenantID id.TenantID) ([]EntityRef, error)
	// ResolveRole maps a role code to a concrete user within a tenant.
	// Returns sentinel.ErrNotFound when the tenant has no mapping; callers
	// must treat that as non-fatal.
	ResolveRole(ctx context.Context, tenantID id.TenantID, roleCode string) (id.UserID, error)
}

// NotificationKind names the escalation conditions.
type NotificationKind string

const (
	KindTMinus3  NotificationKind = "t_minus_3"
	KindDueToday NotificationKind = "due_today"
	KindOverdue  NotificationKind = "overdue"
)

// Notification is one reminder/escalation event. Delivery guarantees are the
// notifier's concern, not the scanner's.
type Notification struct {
	InstanceID id.InstanceID    `json:"instance_id"`
	TenantID   id.TenantID      `json:"tenant_id"`
	Kind       NotificationKind `json:"kind"`
	AsOf       time.Time        `json:"as_of"`
	Recipients []id.UserID      `json:"recipients,omitempty"`
	DueDate    time.Time        `json:"due_date"`
}

// Notifier accepts escalation and reminder events.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
