package handler

import (
	"strings"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// CreateTenantRequest is the HTTP request body for POST /admin/tenants.
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// Validate implements httputil.Validatable.
func (r *CreateTenantRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}

// CreateEntityRequest is the HTTP request body for creating an entity.
type CreateEntityRequest struct {
	Name string `json:"name"`
}

// Validate implements httputil.Validatable.
func (r *CreateEntityRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}

// AssignRoleRequest is the HTTP request body for upserting a role mapping.
type AssignRoleRequest struct {
	RoleCode string `json:"role_code"`
	UserID   string `json:"user_id"`

	parsedUserID id.UserID
}

// Validate implements httputil.Validatable.
func (r *AssignRoleRequest) Validate() error {
	r.RoleCode = strings.TrimSpace(r.RoleCode)
	if r.RoleCode == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "role_code is required")
	}
	userID, err := id.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id must be a valid id")
	}
	r.parsedUserID = userID
	return nil
}

// ParsedUserID returns the validated user id.
func (r *AssignRoleRequest) ParsedUserID() id.UserID {
	return r.parsedUserID
}
