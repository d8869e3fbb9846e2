package role

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obligo/internal/tenant/models"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists role assignments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed role store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts or replaces the assignment riding the (tenant, role) primary
// key.
func (s *PostgresStore) Upsert(ctx context.Context, r *models.RoleAssignment) error {
	query := `
		INSERT INTO role_assignments (tenant_id, role_code, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, role_code) DO UPDATE SET user_id = EXCLUDED.user_id
	`
	_, err := s.db.ExecContext(ctx, query,
		r.TenantID.String(), r.RoleCode, r.UserID.String(), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert role assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, tenantID id.TenantID, roleCode string) (*models.RoleAssignment, error) {
	query := `SELECT tenant_id, role_code, user_id, created_at FROM role_assignments WHERE tenant_id = $1 AND role_code = $2`
	r, err := scanRole(s.db.QueryRowContext(ctx, query, tenantID.String(), roleCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role assignment: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.RoleAssignment, error) {
	query := `SELECT tenant_id, role_code, user_id, created_at FROM role_assignments WHERE tenant_id = $1 ORDER BY role_code`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.RoleAssignment
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role assignments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, roleCode string) error {
	query := `DELETE FROM role_assignments WHERE tenant_id = $1 AND role_code = $2`
	result, err := s.db.ExecContext(ctx, query, tenantID.String(), roleCode)
	if err != nil {
		return fmt.Errorf("delete role assignment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role assignment rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type roleRow interface {
	Scan(dest ...any) error
}

func scanRole(row roleRow) (*models.RoleAssignment, error) {
	var (
		r           models.RoleAssignment
		tenantIDStr string
		userIDStr   string
	)
	if err := row.Scan(&tenantIDStr, &r.RoleCode, &userIDStr, &r.CreatedAt); err != nil {
		return nil, err
	}
	tenantID, err := id.ParseTenantID(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("scan role tenant id: %w", err)
	}
	userID, err := id.ParseUserID(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("scan role user id: %w", err)
	}
	r.TenantID = tenantID
	r.UserID = userID
	return &r, nil
}
