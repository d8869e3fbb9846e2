package handler

import (
	"time"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
)

// MasterResponse is the HTTP representation of a master template.
type MasterResponse struct {
	ID              id.MasterID  `json:"id"`
	TenantID        *id.TenantID `json:"tenant_id,omitempty"`
	Code            string       `json:"code"`
	Category        string       `json:"category"`
	Frequency       string       `json:"frequency"`
	Rule            RuleBody     `json:"rule"`
	DependencyCodes []string     `json:"dependency_codes,omitempty"`
	WorkflowSteps   []string     `json:"workflow_steps,omitempty"`
	Active          bool         `json:"active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// InstanceResponse is the HTTP representation of an obligation instance.
type InstanceResponse struct {
	ID              id.InstanceID  `json:"id"`
	MasterID        id.MasterID    `json:"master_id"`
	EntityID        id.EntityID    `json:"entity_id"`
	TenantID        id.TenantID    `json:"tenant_id"`
	PeriodStart     time.Time      `json:"period_start"`
	PeriodEnd       time.Time      `json:"period_end"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	Status          string         `json:"status"`
	RAG             string         `json:"rag"`
	OwnerID         *id.UserID     `json:"owner_id,omitempty"`
	ApproverID      *id.UserID     `json:"approver_id,omitempty"`
	BlockedBy       *id.InstanceID `json:"blocked_by,omitempty"`
	NeedsAssignment bool           `json:"needs_assignment"`
	FiledAt         *time.Time     `json:"filed_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Version         int64          `json:"version"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TaskResponse is the HTTP representation of a workflow sub-step.
type TaskResponse struct {
	ID         id.TaskID  `json:"id"`
	Seq        int        `json:"seq"`
	Name       string     `json:"name"`
	AssigneeID *id.UserID `json:"assignee_id,omitempty"`
	Status     string     `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FromMaster converts a master to its HTTP representation.
func FromMaster(m *models.Master) MasterResponse {
	return MasterResponse{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Code:      m.Code,
		Category:  m.Category,
		Frequency: string(m.Frequency),
		Rule: RuleBody{
			Type:             string(m.Rule.Type),
			Day:              m.Rule.Day,
			FiscalStartMonth: int(m.Rule.FiscalStartMonth),
		},
		DependencyCodes: m.DependencyCodes,
		WorkflowSteps:   m.WorkflowSteps,
		Active:          m.Active,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromMasters converts a master list.
func FromMasters(masters []*models.Master) []MasterResponse {
	out := make([]MasterResponse, 0, len(masters))
	for _, m := range masters {
		out = append(out, FromMaster(m))
	}
	return out
}

// FromInstance converts an instance to its HTTP representation.
func FromInstance(i *models.Instance) InstanceResponse {
	return InstanceResponse{
		ID:              i.ID,
		MasterID:        i.MasterID,
		EntityID:        i.EntityID,
		TenantID:        i.TenantID,
		PeriodStart:     i.PeriodStart,
		PeriodEnd:       i.PeriodEnd,
		DueDate:         i.DueDate,
		Status:          string(i.Status),
		RAG:             string(i.RAG),
		OwnerID:         i.OwnerID,
		ApproverID:      i.ApproverID,
		BlockedBy:       i.BlockedBy,
		NeedsAssignment: i.NeedsAssignment,
		FiledAt:         i.FiledAt,
		CompletedAt:     i.CompletedAt,
		Version:         i.Version,
		UpdatedAt:       i.UpdatedAt,
	}
}

// FromInstances converts an instance list.
func FromInstances(instances []*models.Instance) []InstanceResponse {
	out := make([]InstanceResponse, 0, len(instances))
	for _, i := range instances {
		out = append(out, FromInstance(i))
	}
	return out
}

// FromTask converts a workflow task to its HTTP representation.
func FromTask(t *models.WorkflowTask) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		Seq:        t.Seq,
		Name:       t.Name,
		AssigneeID: t.AssigneeID,
		Status:     string(t.Status),
		UpdatedAt:  t.UpdatedAt,
	}
}

// FromTasks converts a task list.
func FromTasks(tasks []*models.WorkflowTask) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTask(t))
	}
	return out
}
