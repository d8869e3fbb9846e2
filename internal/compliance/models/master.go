package models

import (
	"strings"
	"time"

	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// Frequency classifies how often a master spawns instances.
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyAnnual     Frequency = "annual"
	FrequencyEventBased Frequency = "event_based"
)

// Valid reports whether the frequency is one of the known cadence classes.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual, FrequencyEventBased:
		return true
	}
	return false
}

// RuleType tags a due-date rule descriptor.
type RuleType string

const (
	RuleMonthly    RuleType = "monthly"
	RuleQuarterly  RuleType = "quarterly"
	RuleAnnual     RuleType = "annual"
	RuleEventBased RuleType = "event_based"
)

// RuleDescriptor describes how a due date derives from a period.
//
//   - monthly: Day-th day of the month following the period's end month
//   - quarterly: Day-th day of the month following the period's quarter end
//   - annual: Day-th day of the month following the fiscal year that starts
//     in FiscalStartMonth
//   - event_based: no derivable due date; supplied externally
type RuleDescriptor struct {
	Type             RuleType   `json:"type"`
	Day              int        `json:"day,omitempty"`
	FiscalStartMonth time.Month `json:"fiscal_start_month,omitempty"`
}

// Master is a reusable obligation template.
//
// Invariants:
//   - Code is non-empty and unique within its tenant scope (nil TenantID
//     means global, applying to all tenants' entities)
//   - Frequency matches the rule type
//   - Never deleted while instances reference it; deactivate instead
type Master struct {
	ID              id.MasterID    `json:"id"`
	TenantID        *id.TenantID   `json:"tenant_id,omitempty"`
	Code            string         `json:"code"`
	Category        string         `json:"category"`
	Frequency       Frequency      `json:"frequency"`
	Rule            RuleDescriptor `json:"rule"`
	DependencyCodes []string       `json:"dependency_codes,omitempty"`
	WorkflowSteps   []string       `json:"workflow_steps,omitempty"`
	Active          bool           `json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewMaster validates and constructs a master template.
func NewMaster(masterID id.MasterID, tenantID *id.TenantID, code, category string, freq Frequency, rule RuleDescriptor, now time.Time) (*Master, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "master code cannot be empty")
	}
	if !freq.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown frequency %q", freq)
	}
	if !ruleMatchesFrequency(rule.Type, freq) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "rule type %q does not match frequency %q", rule.Type, freq)
	}
	return &Master{
		ID:        masterID,
		TenantID:  tenantID,
		Code:      code,
		Category:  category,
		Frequency: freq,
		Rule:      rule,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func ruleMatchesFrequency(rt RuleType, f Frequency) bool {
	switch f {
	case FrequencyMonthly:
		return rt == RuleMonthly
	case FrequencyQuarterly:
		return rt == RuleQuarterly
	case FrequencyAnnual:
		return rt == RuleAnnual
	case FrequencyEventBased:
		return rt == RuleEventBased
	}
	return false
}

// IsGlobal reports whether the master applies to every tenant's entities.
func (m *Master) IsGlobal() bool { return m.TenantID == nil }

// CanDeactivate checks the active→inactive transition.
func (m *Master) CanDeactivate() error {
	if !m.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "master is already inactive")
	}
	return nil
}

// ApplyDeactivation soft-deactivates the master. Existing instances are
// untouched; the generator skips inactive masters.
func (m *Master) ApplyDeactivation(now time.Time) {
	m.Active = false
	m.UpdatedAt = now
}

// CanReactivate checks the inactive→active transition.
func (m *Master) CanReactivate() error {
	if m.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "master is already active")
	}
	return nil
}

// ApplyReactivation re-enables generation for the master.
func (m *Master) ApplyReactivation(now time.Time) {
	m.Active = true
	m.UpdatedAt = now
}
