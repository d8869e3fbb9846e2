// Package audit records before/after snapshots for every automatic status/RAG
// transition so regulators and operators can reconstruct why an instance is in
// its current state.
package audit

import (
	"time"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
)

// Action classifies what produced a transition.
type Action string

const (
	ActionRecompute  Action = "rag_recompute"
	ActionBlocked    Action = "dependency_blocked"
	ActionReleased   Action = "dependency_released"
	ActionManual     Action = "manual_transition"
	ActionGenerated  Action = "instance_generated"
	ActionEscalation Action = "escalation_emitted"
)

// Event is one before/after snapshot. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	OccurredAt time.Time     `json:"occurred_at"`
	TenantID   id.TenantID   `json:"tenant_id"`
	InstanceID id.InstanceID `json:"instance_id"`
	// Actor is "system" for engine-driven transitions, otherwise the user ID.
	Actor      string        `json:"actor"`
	Action     Action        `json:"action"`
	FromStatus models.Status `json:"from_status"`
	ToStatus   models.Status `json:"to_status"`
	FromRAG    models.RAG    `json:"from_rag"`
	ToRAG      models.RAG    `json:"to_rag"`
	Reason     string        `json:"reason,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
}

// SystemActor marks engine-driven transitions.
const SystemActor = "system"
