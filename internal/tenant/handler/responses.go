package handler

import (
	"time"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
)

// TenantResponse is the HTTP representation of a tenant.
type TenantResponse struct {
	ID        id.TenantID `json:"id"`
	Name      string      `json:"name"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TenantCreatedResponse carries the tenant plus its one-time secret.
type TenantCreatedResponse struct {
	TenantResponse
	Secret string `json:"secret"`
}

// SecretResponse carries a freshly rotated secret.
type SecretResponse struct {
	Secret string `json:"secret"`
}

// PurgeResponse reports how many instances a data purge removed.
type PurgeResponse struct {
	Removed int `json:"removed"`
}

// EntityResponse is the HTTP representation of a legal entity.
type EntityResponse struct {
	ID        id.EntityID `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	Name      string      `json:"name"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RoleAssignmentResponse is the HTTP representation of a role mapping.
type RoleAssignmentResponse struct {
	TenantID  id.TenantID `json:"tenant_id"`
	RoleCode  string      `json:"role_code"`
	UserID    id.UserID   `json:"user_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// FromTenant converts a tenant to its HTTP representation.
func FromTenant(t *models.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// FromTenantWithSecret attaches the one-time secret to a tenant response.
func FromTenantWithSecret(t *models.Tenant, secret string) TenantCreatedResponse {
	return TenantCreatedResponse{TenantResponse: FromTenant(t), Secret: secret}
}

// FromTenants converts a tenant list.
func FromTenants(tenants []*models.Tenant) []TenantResponse {
	out := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, FromTenant(t))
	}
	return out
}

// FromEntity converts an entity to its HTTP representation.
func FromEntity(e *models.Entity) EntityResponse {
	return EntityResponse{
		ID:        e.ID,
		TenantID:  e.TenantID,
		Name:      e.Name,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// FromEntities converts an entity list.
func FromEntities(entities []*models.Entity) []EntityResponse {
	out := make([]EntityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, FromEntity(e))
	}
	return out
}

// FromRoleAssignment converts a role mapping to its HTTP representation.
func FromRoleAssignment(a *models.RoleAssignment) RoleAssignmentResponse {
	return RoleAssignmentResponse{
		TenantID:  a.TenantID,
		RoleCode:  a.RoleCode,
		UserID:    a.UserID,
		CreatedAt: a.CreatedAt,
	}
}

// FromRoleAssignments converts a role mapping list.
func FromRoleAssignments(assignments []*models.RoleAssignment) []RoleAssignmentResponse {
	out := make([]RoleAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, FromRoleAssignment(a))
	}
	return out
}
