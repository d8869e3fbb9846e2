package instance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"obligo/internal/compliance/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists instances in PostgreSQL. The
// (master_id, entity_id, period_start) unique constraint and the version
// column carry the store's two concurrency guarantees.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed instance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const instanceColumns = `id, master_id, entity_id, tenant_id, period_start, period_end, due_date,
	status, rag, prior_status, owner_id, approver_id, blocked_by, needs_assignment,
	filed_at, completed_at, version, created_at, updated_at`

// CreateIfAbsent inserts with ON CONFLICT DO NOTHING against the uniqueness
// index. Zero rows affected means a row already existed: reported as
// created=false, never as an error.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, inst *models.Instance) (bool, error) {
	query := `
		INSERT INTO instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18)
		ON CONFLICT (master_id, entity_id, period_start) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		inst.ID.String(), inst.MasterID.String(), inst.EntityID.String(), inst.TenantID.String(),
		inst.PeriodStart, inst.PeriodEnd, nullTime(inst.DueDate),
		string(inst.Status), string(inst.RAG), nullStatus(inst.PriorStatus),
		nullUserID(inst.OwnerID), nullUserID(inst.ApproverID), nullInstanceID(inst.BlockedBy),
		inst.NeedsAssignment, nullTime(inst.FiledAt), nullTime(inst.CompletedAt),
		inst.CreatedAt, inst.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create instance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create instance rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}
	inst.Version = 1
	return true, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, instanceID id.InstanceID) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`
	inst, err := scanInstance(s.db.QueryRowContext(ctx, query, instanceID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find instance: %w", err)
	}
	return inst, nil
}

// FindByKey looks an instance up by its uniqueness key.
func (s *PostgresStore) FindByKey(ctx context.Context, masterID id.MasterID, entityID id.EntityID, periodStart time.Time) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE master_id = $1 AND entity_id = $2 AND period_start = $3`
	inst, err := scanInstance(s.db.QueryRowContext(ctx, query, masterID.String(), entityID.String(), periodStart))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find instance by key: %w", err)
	}
	return inst, nil
}

// UpdateCAS updates the row only while its version still matches. Zero rows
// affected distinguishes a lost race (sentinel.ErrConflict) from a missing row
// (sentinel.ErrNotFound).
func (s *PostgresStore) UpdateCAS(ctx context.Context, inst *models.Instance, expectedVersion int64) error {
	query := `
		UPDATE instances SET
			due_date = $3, status = $4, rag = $5, prior_status = $6,
			owner_id = $7, approver_id = $8, blocked_by = $9, needs_assignment = $10,
			filed_at = $11, completed_at = $12, version = version + 1, updated_at = $13
		WHERE id = $1 AND version = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		inst.ID.String(), expectedVersion,
		nullTime(inst.DueDate), string(inst.Status), string(inst.RAG), nullStatus(inst.PriorStatus),
		nullUserID(inst.OwnerID), nullUserID(inst.ApproverID), nullInstanceID(inst.BlockedBy),
		inst.NeedsAssignment, nullTime(inst.FiledAt), nullTime(inst.CompletedAt),
		inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update instance rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM instances WHERE id = $1)`, inst.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check instance exists: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	inst.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) ListNonTerminalByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE tenant_id = $1 AND status NOT IN ('filed', 'completed')`
	return s.queryInstances(ctx, query, tenantID.String())
}

func (s *PostgresStore) ListWithBlockingRef(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE tenant_id = $1 AND blocked_by IS NOT NULL`
	return s.queryInstances(ctx, query, tenantID.String())
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE tenant_id = $1`
	return s.queryInstances(ctx, query, tenantID.String())
}

func (s *PostgresStore) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instances WHERE tenant_id = $1`, tenantID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return count, nil
}

// PurgeTenant removes a tenant's instances and their tasks inside one
// transaction. Administrative offboarding only; no engine calls this.
func (s *PostgresStore) PurgeTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge tenant: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM workflow_tasks WHERE instance_id IN (SELECT id FROM instances WHERE tenant_id = $1)
	`, tenantID.String()); err != nil {
		return 0, fmt.Errorf("purge tenant tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE instances SET blocked_by = NULL WHERE tenant_id = $1`, tenantID.String()); err != nil {
		return 0, fmt.Errorf("clear tenant blocking refs: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM instances WHERE tenant_id = $1`, tenantID.String())
	if err != nil {
		return 0, fmt.Errorf("purge tenant instances: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge tenant rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge tenant: %w", err)
	}
	return int(removed), nil
}

func (s *PostgresStore) queryInstances(ctx context.Context, query string, args ...any) ([]*models.Instance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var out []*models.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStatus(s *models.Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func nullUserID(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return u.String()
}

func nullInstanceID(i *id.InstanceID) any {
	if i == nil {
		return nil
	}
	return i.String()
}

type instanceRow interface {
	Scan(dest ...any) error
}

func scanInstance(row instanceRow) (*models.Instance, error) {
	var (
		inst        models.Instance
		idStr       string
		masterStr   string
		entityStr   string
		tenantStr   string
		dueDate     sql.NullTime
		status      string
		rag         string
		priorStatus sql.NullString
		ownerStr    sql.NullString
		approverStr sql.NullString
		blockedStr  sql.NullString
		filedAt     sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(&idStr, &masterStr, &entityStr, &tenantStr,
		&inst.PeriodStart, &inst.PeriodEnd, &dueDate,
		&status, &rag, &priorStatus, &ownerStr, &approverStr, &blockedStr,
		&inst.NeedsAssignment, &filedAt, &completedAt,
		&inst.Version, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if inst.ID, err = id.ParseInstanceID(idStr); err != nil {
		return nil, fmt.Errorf("scan instance id: %w", err)
	}
	if inst.MasterID, err = id.ParseMasterID(masterStr); err != nil {
		return nil, fmt.Errorf("scan master id: %w", err)
	}
	if inst.EntityID, err = id.ParseEntityID(entityStr); err != nil {
		return nil, fmt.Errorf("scan entity id: %w", err)
	}
	if inst.TenantID, err = id.ParseTenantID(tenantStr); err != nil {
		return nil, fmt.Errorf("scan tenant id: %w", err)
	}

	inst.Status = models.Status(status)
	inst.RAG = models.RAG(rag)
	if dueDate.Valid {
		t := dueDate.Time.UTC()
		inst.DueDate = &t
	}
	if priorStatus.Valid {
		ps := models.Status(priorStatus.String)
		inst.PriorStatus = &ps
	}
	if ownerStr.Valid {
		ownerID, err := id.ParseUserID(ownerStr.String)
		if err != nil {
			return nil, fmt.Errorf("scan owner id: %w", err)
		}
		inst.OwnerID = &ownerID
	}
	if approverStr.Valid {
		approverID, err := id.ParseUserID(approverStr.String)
		if err != nil {
			return nil, fmt.Errorf("scan approver id: %w", err)
		}
		inst.ApproverID = &approverID
	}
	if blockedStr.Valid {
		blockedBy, err := id.ParseInstanceID(blockedStr.String)
		if err != nil {
			return nil, fmt.Errorf("scan blocked_by id: %w", err)
		}
		inst.BlockedBy = &blockedBy
	}
	if filedAt.Valid {
		t := filedAt.Time
		inst.FiledAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		inst.CompletedAt = &t
	}
	inst.PeriodStart = inst.PeriodStart.UTC()
	inst.PeriodEnd = inst.PeriodEnd.UTC()
	return &inst, nil
}
