package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	platformpg "obligo/internal/platform/postgres"
	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists tenants in PostgreSQL. Name uniqueness rides on the
// case-insensitive unique index.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, name, status, secret_hash, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Tenant) error {
	query := `INSERT INTO tenants (` + tenantColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		t.ID.String(), t.Name, string(t.Status), t.SecretHash, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, tenantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListActiveIDs(ctx context.Context) ([]id.TenantID, error) {
	query := `SELECT id FROM tenants WHERE status = 'active'`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []id.TenantID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		tenantID, err := id.ParseTenantID(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse tenant id: %w", err)
		}
		out = append(out, tenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant ids: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, t *models.Tenant) error {
	query := `UPDATE tenants SET name = $2, status = $3, secret_hash = $4, updated_at = $5 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query,
		t.ID.String(), t.Name, string(t.Status), t.SecretHash, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var (
		t      models.Tenant
		idStr  string
		status string
	)
	if err := row.Scan(&idStr, &t.Name, &status, &t.SecretHash, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	tenantID, err := id.ParseTenantID(idStr)
	if err != nil {
		return nil, fmt.Errorf("scan tenant id: %w", err)
	}
	t.ID = tenantID
	t.Status = models.TenantStatus(status)
	return &t, nil
}
