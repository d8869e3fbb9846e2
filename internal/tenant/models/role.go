package models

import (
	"strings"
	"time"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// RoleAssignment maps one role code to a default user within a tenant. The
// generator resolves "preparer" and "approver" through these records when
// stamping default owners onto new instances.
//
// One assignment per (tenant, role code): re-assigning replaces the user.
type RoleAssignment struct {
	TenantID  id.TenantID `json:"tenant_id"`
	RoleCode  string      `json:"role_code"`
	UserID    id.UserID   `json:"user_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewRoleAssignment validates and constructs a role assignment.
func NewRoleAssignment(tenantID id.TenantID, roleCode string, userID id.UserID, now time.Time) (*RoleAssignment, error) {
	roleCode = strings.ToLower(strings.TrimSpace(roleCode))
	if roleCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role code cannot be empty")
	}
	if tenantID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role assignment needs a tenant and a user")
	}
	return &RoleAssignment{
		TenantID:  tenantID,
		RoleCode:  roleCode,
		UserID:    userID,
		CreatedAt: now,
	}, nil
}
