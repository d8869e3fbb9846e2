package models

import (
	"time"

	id "obligo/pkg/domain"
)

// TaskStatus is the state of a workflow sub-step.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
	TaskSkipped TaskStatus = "skipped"
)

// WorkflowTask is an ordered sub-step owned exclusively by its instance. The
// engines only ever consult open-task counts; task workflow itself belongs to
// the calling system.
type WorkflowTask struct {
	ID         id.TaskID     `json:"id"`
	InstanceID id.InstanceID `json:"instance_id"`
	Seq        int           `json:"seq"`
	Name       string        `json:"name"`
	AssigneeID *id.UserID    `json:"assignee_id,omitempty"`
	Status     TaskStatus    `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Open reports whether the task still needs action.
func (t *WorkflowTask) Open() bool { return t.Status == TaskPending }
