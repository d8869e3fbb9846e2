package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists entities in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed entity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entityColumns = `id, tenant_id, name, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, e *models.Entity) error {
	query := `INSERT INTO entities (` + entityColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID.String(), e.TenantID.String(), e.Name, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	e, err := scanEntity(s.db.QueryRowContext(ctx, query, entityID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE tenant_id = $1 ORDER BY name`
	return s.query(ctx, query, tenantID.String())
}

func (s *PostgresStore) ListActiveByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE tenant_id = $1 AND status = 'active' ORDER BY name`
	return s.query(ctx, query, tenantID.String())
}

func (s *PostgresStore) Update(ctx context.Context, e *models.Entity) error {
	query := `UPDATE entities SET name = $2, status = $3, updated_at = $4 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query,
		e.ID.String(), e.Name, string(e.Status), e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

type entityRow interface {
	Scan(dest ...any) error
}

func scanEntity(row entityRow) (*models.Entity, error) {
	var (
		e           models.Entity
		idStr       string
		tenantIDStr string
		status      string
	)
	if err := row.Scan(&idStr, &tenantIDStr, &e.Name, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	entityID, err := id.ParseEntityID(idStr)
	if err != nil {
		return nil, fmt.Errorf("scan entity id: %w", err)
	}
	tenantID, err := id.ParseTenantID(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("scan entity tenant id: %w", err)
	}
	e.ID = entityID
	e.TenantID = tenantID
	e.Status = models.EntityStatus(status)
	return &e, nil
}
