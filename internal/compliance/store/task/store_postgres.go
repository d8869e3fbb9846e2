package task

import (
	"context"
	"database/sql"
	"fmt"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists workflow tasks in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed task store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateBatch inserts all tasks in one transaction so a generated instance
// never ends up with a partial step list.
func (s *PostgresStore) CreateBatch(ctx context.Context, tasks []*models.WorkflowTask) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tasks: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO workflow_tasks (id, instance_id, seq, name, assignee_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, t := range tasks {
		var assignee any
		if t.AssigneeID != nil {
			assignee = t.AssigneeID.String()
		}
		if _, err := tx.ExecContext(ctx, query,
			t.ID.String(), t.InstanceID.String(), t.Seq, t.Name, assignee,
			string(t.Status), t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tasks: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByInstance(ctx context.Context, instanceID id.InstanceID) ([]*models.WorkflowTask, error) {
	query := `
		SELECT id, instance_id, seq, name, assignee_id, status, created_at, updated_at
		FROM workflow_tasks
		WHERE instance_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, instanceID.String())
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkflowTask
	for rows.Next() {
		var (
			t           models.WorkflowTask
			idStr       string
			instanceStr string
			assigneeStr sql.NullString
			status      string
		)
		if err := rows.Scan(&idStr, &instanceStr, &t.Seq, &t.Name, &assigneeStr, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if t.ID, err = id.ParseTaskID(idStr); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		if t.InstanceID, err = id.ParseInstanceID(instanceStr); err != nil {
			return nil, fmt.Errorf("scan task instance id: %w", err)
		}
		if assigneeStr.Valid {
			assigneeID, err := id.ParseUserID(assigneeStr.String)
			if err != nil {
				return nil, fmt.Errorf("scan task assignee id: %w", err)
			}
			t.AssigneeID = &assigneeID
		}
		t.Status = models.TaskStatus(status)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountOpenByInstance(ctx context.Context, instanceID id.InstanceID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM workflow_tasks WHERE instance_id = $1 AND status = 'pending'`
	if err := s.db.QueryRowContext(ctx, query, instanceID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open tasks: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, taskID id.TaskID, status models.TaskStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE workflow_tasks SET status = $2, updated_at = NOW() WHERE id = $1`,
		taskID.String(), string(status))
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
