// Package domain holds the typed identifiers shared across modules.
//
// IDs are distinct uuid-backed types so a TenantID can never be passed where
// an InstanceID is expected. Parse helpers enforce the invariant that IDs are
// valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "obligo/pkg/domain-errors"
)

type (
	// TenantID identifies a tenant organization.
	TenantID uuid.UUID
	// EntityID identifies a legal entity owned by a tenant.
	EntityID uuid.UUID
	// MasterID identifies a compliance master template.
	MasterID uuid.UUID
	// InstanceID identifies a period-bound compliance instance.
	InstanceID uuid.UUID
	// TaskID identifies a workflow task owned by an instance.
	TaskID uuid.UUID
	// UserID identifies a user (owner, approver, assignee).
	UserID uuid.UUID
)

// New constructors mint random v4 IDs.

func NewTenantID() TenantID     { return TenantID(uuid.New()) }
func NewEntityID() EntityID     { return EntityID(uuid.New()) }
func NewMasterID() MasterID     { return MasterID(uuid.New()) }
func NewInstanceID() InstanceID { return InstanceID(uuid.New()) }
func NewTaskID() TaskID         { return TaskID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

// ParseTenantID validates and returns a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	return TenantID(u), err
}

// ParseEntityID validates and returns an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s)
	return EntityID(u), err
}

// ParseMasterID validates and returns a MasterID.
func ParseMasterID(s string) (MasterID, error) {
	u, err := parseUUID(s)
	return MasterID(u), err
}

// ParseInstanceID validates and returns an InstanceID.
func ParseInstanceID(s string) (InstanceID, error) {
	u, err := parseUUID(s)
	return InstanceID(u), err
}

// ParseTaskID validates and returns a TaskID.
func ParseTaskID(s string) (TaskID, error) {
	u, err := parseUUID(s)
	return TaskID(u), err
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id EntityID) String() string   { return uuid.UUID(id).String() }
func (id MasterID) String() string   { return uuid.UUID(id).String() }
func (id InstanceID) String() string { return uuid.UUID(id).String() }
func (id TaskID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MasterID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id InstanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TaskID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// MarshalText implementations keep IDs as plain uuid strings in JSON.

func (id TenantID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EntityID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id MasterID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id InstanceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TaskID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	parsed, err := ParseTenantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EntityID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *MasterID) UnmarshalText(b []byte) error {
	parsed, err := ParseMasterID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *InstanceID) UnmarshalText(b []byte) error {
	parsed, err := ParseInstanceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TaskID) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
