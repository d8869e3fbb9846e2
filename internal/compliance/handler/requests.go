package handler

import (
	"strings"
	"time"

	"obligo/internal/compliance/models"
	dErrors "obligo/pkg/domain-errors"
)

const (
	maxDependencyCodes = 16
	maxWorkflowSteps   = 32
)

// RuleBody is the due-date rule portion of a master creation request.
type RuleBody struct {
	Type             string `json:"type"`
	Day              int    `json:"day,omitempty"`
	FiscalStartMonth int    `json:"fiscal_start_month,omitempty"`
}

// CreateMasterRequest is the HTTP request body for POST /masters.
type CreateMasterRequest struct {
	Code            string   `json:"code"`
	Category        string   `json:"category"`
	Frequency       string   `json:"frequency"`
	Rule            RuleBody `json:"rule"`
	DependencyCodes []string `json:"dependency_codes,omitempty"`
	WorkflowSteps   []string `json:"workflow_steps,omitempty"`
	Global          bool     `json:"global,omitempty"`

	parsedFrequency models.Frequency
	parsedRule      models.RuleDescriptor
}

// Validate implements httputil.Validatable.
func (r *CreateMasterRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "code is required")
	}
	if len(r.DependencyCodes) > maxDependencyCodes {
		return dErrors.Newf(dErrors.CodeInvalidInput, "at most %d dependency codes allowed", maxDependencyCodes)
	}
	if len(r.WorkflowSteps) > maxWorkflowSteps {
		return dErrors.Newf(dErrors.CodeInvalidInput, "at most %d workflow steps allowed", maxWorkflowSteps)
	}

	freq := models.Frequency(strings.ToLower(strings.TrimSpace(r.Frequency)))
	if !freq.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown frequency %q", r.Frequency)
	}
	r.parsedFrequency = freq

	if r.Rule.FiscalStartMonth < 0 || r.Rule.FiscalStartMonth > 12 {
		return dErrors.New(dErrors.CodeInvalidInput, "fiscal_start_month must be 1 through 12 when set")
	}
	r.parsedRule = models.RuleDescriptor{
		Type:             models.RuleType(strings.ToLower(strings.TrimSpace(r.Rule.Type))),
		Day:              r.Rule.Day,
		FiscalStartMonth: time.Month(r.Rule.FiscalStartMonth),
	}
	return nil
}

// ParsedFrequency returns the validated frequency.
func (r *CreateMasterRequest) ParsedFrequency() models.Frequency {
	return r.parsedFrequency
}

// ParsedRule returns the validated rule descriptor.
func (r *CreateMasterRequest) ParsedRule() models.RuleDescriptor {
	return r.parsedRule
}

// TransitionRequest is the HTTP request body for a manual status change.
type TransitionRequest struct {
	To string `json:"to"`

	parsedStatus models.Status
}

// Validate implements httputil.Validatable.
func (r *TransitionRequest) Validate() error {
	status := models.Status(strings.ToLower(strings.TrimSpace(r.To)))
	if !status.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", r.To)
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *TransitionRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// CompleteTaskRequest is the HTTP request body for closing a workflow task.
type CompleteTaskRequest struct {
	Status string `json:"status"`

	parsedStatus models.TaskStatus
}

// Validate implements httputil.Validatable.
func (r *CompleteTaskRequest) Validate() error {
	switch status := models.TaskStatus(strings.ToLower(strings.TrimSpace(r.Status))); status {
	case models.TaskDone, models.TaskSkipped:
		r.parsedStatus = status
		return nil
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "status must be %q or %q", models.TaskDone, models.TaskSkipped)
	}
}

// ParsedStatus returns the validated task status.
func (r *CompleteTaskRequest) ParsedStatus() models.TaskStatus {
	return r.parsedStatus
}
