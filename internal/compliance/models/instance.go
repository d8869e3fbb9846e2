package models

import (
	"time"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusNotStarted      Status = "not_started"
	StatusInProgress      Status = "in_progress"
	StatusReview          Status = "review"
	StatusPendingApproval Status = "pending_approval"
	StatusFiled           Status = "filed"
	StatusCompleted       Status = "completed"
	StatusBlocked         Status = "blocked"
	StatusRejected        Status = "rejected"
)

// IsTerminal reports whether the status is final. Terminal instances are never
// touched by recomputation, resolution or escalation.
func (s Status) IsTerminal() bool {
	return s == StatusFiled || s == StatusCompleted
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusReview, StatusPendingApproval,
		StatusFiled, StatusCompleted, StatusBlocked, StatusRejected:
		return true
	}
	return false
}

// manualTransitions is the workflow graph exposed to the calling system.
// Blocking transitions are not listed here; they go through CanBlock and
// CanRelease because Blocked restores the recorded prior status.
var manualTransitions = map[Status][]Status{
	StatusNotStarted:      {StatusInProgress},
	StatusInProgress:      {StatusReview},
	StatusReview:          {StatusPendingApproval},
	StatusPendingApproval: {StatusFiled, StatusRejected},
	StatusRejected:        {StatusInProgress},
	StatusFiled:           {StatusCompleted},
}

// CanTransitionTo reports whether the manual workflow allows s → to.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range manualTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RAG is the Red/Amber/Green risk indicator derived from due-date proximity
// and blocking state.
type RAG string

const (
	RAGGreen RAG = "green"
	RAGAmber RAG = "amber"
	RAGRed   RAG = "red"
)

// Period is one period the obligation covers, inclusive calendar days.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Instance is one period-bound occurrence of a master for an entity.
//
// Invariants:
//   - exactly one instance exists per (master, entity, period); the storage
//     layer enforces this and the generator relies on it for concurrency
//     safety
//   - DueDate is a deterministic function of the master's rule and the period
//     (nil only for event-based masters until supplied externally)
//   - a blocking reference never crosses tenants
//   - instances are never deleted, only transitioned
type Instance struct {
	ID              id.InstanceID  `json:"id"`
	MasterID        id.MasterID    `json:"master_id"`
	EntityID        id.EntityID    `json:"entity_id"`
	TenantID        id.TenantID    `json:"tenant_id"`
	PeriodStart     time.Time      `json:"period_start"`
	PeriodEnd       time.Time      `json:"period_end"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	Status          Status         `json:"status"`
	RAG             RAG            `json:"rag"`
	PriorStatus     *Status        `json:"prior_status,omitempty"`
	OwnerID         *id.UserID     `json:"owner_id,omitempty"`
	ApproverID      *id.UserID     `json:"approver_id,omitempty"`
	BlockedBy       *id.InstanceID `json:"blocked_by,omitempty"`
	NeedsAssignment bool           `json:"needs_assignment"`
	FiledAt         *time.Time     `json:"filed_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Version         int64          `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Period returns the instance's covered period.
func (i *Instance) Period() Period {
	return Period{Start: i.PeriodStart, End: i.PeriodEnd}
}

// IsTerminal reports whether the instance reached a final status.
func (i *Instance) IsTerminal() bool { return i.Status.IsTerminal() }

// CanTransition checks a manual workflow transition.
func (i *Instance) CanTransition(to Status) error {
	if !to.Valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", to)
	}
	if to == StatusBlocked {
		return i.CanBlock()
	}
	if i.Status == StatusBlocked {
		return dErrors.New(dErrors.CodeInvariantViolation, "blocked instance must be released before other transitions")
	}
	if !i.Status.CanTransitionTo(to) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot transition from %s to %s", i.Status, to)
	}
	return nil
}

// ApplyTransition performs a validated manual transition. Call CanTransition
// first.
func (i *Instance) ApplyTransition(to Status, now time.Time) {
	i.Status = to
	switch to {
	case StatusFiled:
		t := now
		i.FiledAt = &t
	case StatusCompleted:
		t := now
		i.CompletedAt = &t
	}
	i.UpdatedAt = now
}

// CanBlock checks the transition into Blocked.
func (i *Instance) CanBlock() error {
	if i.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "terminal instance cannot be blocked")
	}
	if i.Status == StatusBlocked {
		return dErrors.New(dErrors.CodeInvariantViolation, "instance is already blocked")
	}
	return nil
}

// ApplyBlock moves the instance into Blocked, recording the prior status so a
// later release can restore it.
func (i *Instance) ApplyBlock(now time.Time) {
	prior := i.Status
	i.PriorStatus = &prior
	i.Status = StatusBlocked
	i.RAG = RAGRed
	i.UpdatedAt = now
}

// CanRelease checks the transition out of Blocked.
func (i *Instance) CanRelease() error {
	if i.Status != StatusBlocked {
		return dErrors.New(dErrors.CodeInvariantViolation, "instance is not blocked")
	}
	return nil
}

// ApplyRelease restores the status recorded when the instance was blocked.
// Instances blocked since creation fall back to NotStarted.
func (i *Instance) ApplyRelease(now time.Time) {
	restored := StatusNotStarted
	if i.PriorStatus != nil {
		restored = *i.PriorStatus
	}
	i.Status = restored
	i.PriorStatus = nil
	i.UpdatedAt = now
}
