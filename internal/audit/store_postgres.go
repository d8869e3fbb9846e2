package audit

import (
	"context"
	"database/sql"
	"fmt"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL. Append-only.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (occurred_at, tenant_id, instance_id, actor, action,
			from_status, to_status, from_rag, to_rag, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.OccurredAt, event.TenantID.String(), event.InstanceID.String(),
		event.Actor, string(event.Action),
		string(event.FromStatus), string(event.ToStatus),
		string(event.FromRAG), string(event.ToRAG),
		event.Reason, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByInstance returns an instance's audit trail oldest-first.
func (s *PostgresStore) ListByInstance(ctx context.Context, instanceID id.InstanceID) ([]Event, error) {
	query := `
		SELECT occurred_at, tenant_id, instance_id, actor, action,
			from_status, to_status, from_rag, to_rag, reason, request_id
		FROM audit_events
		WHERE instance_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, instanceID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e           Event
			tenantStr   string
			instanceStr string
			action      string
			fromStatus  string
			toStatus    string
			fromRAG     string
			toRAG       string
		)
		if err := rows.Scan(&e.OccurredAt, &tenantStr, &instanceStr, &e.Actor, &action,
			&fromStatus, &toStatus, &fromRAG, &toRAG, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if e.TenantID, err = id.ParseTenantID(tenantStr); err != nil {
			return nil, fmt.Errorf("scan audit tenant id: %w", err)
		}
		if e.InstanceID, err = id.ParseInstanceID(instanceStr); err != nil {
			return nil, fmt.Errorf("scan audit instance id: %w", err)
		}
		e.Action = Action(action)
		e.FromStatus = models.Status(fromStatus)
		e.ToStatus = models.Status(toStatus)
		e.FromRAG = models.RAG(fromRAG)
		e.ToRAG = models.RAG(toRAG)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
