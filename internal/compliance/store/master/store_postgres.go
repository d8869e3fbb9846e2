package master

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"obligo/internal/compliance/models"
	platformpg "obligo/internal/platform/postgres"
	id "obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists masters in PostgreSQL. Pure I/O; scoping and
// validation rules live in the service and engines.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed master store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const masterColumns = `id, tenant_id, code, category, frequency, rule_type, rule_day, fiscal_start_month, dependency_codes, workflow_steps, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, m *models.Master) error {
	query := `
		INSERT INTO masters (` + masterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var tenantID any
	if m.TenantID != nil {
		tenantID = m.TenantID.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		m.ID.String(), tenantID, m.Code, m.Category, string(m.Frequency),
		string(m.Rule.Type), m.Rule.Day, int(m.Rule.FiscalStartMonth),
		pq.Array(m.DependencyCodes), pq.Array(m.WorkflowSteps),
		m.Active, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create master: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, masterID id.MasterID) (*models.Master, error) {
	query := `SELECT ` + masterColumns + ` FROM masters WHERE id = $1`
	m, err := scanMaster(s.db.QueryRowContext(ctx, query, masterID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find master: %w", err)
	}
	return m, nil
}

// FindByCode resolves a code within a tenant scope, preferring the tenant's
// own master over a global one.
func (s *PostgresStore) FindByCode(ctx context.Context, tenantID id.TenantID, code string) (*models.Master, error) {
	query := `
		SELECT ` + masterColumns + ` FROM masters
		WHERE LOWER(code) = LOWER($2) AND (tenant_id = $1 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1
	`
	m, err := scanMaster(s.db.QueryRowContext(ctx, query, tenantID.String(), code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find master by code: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListActiveByFrequency(ctx context.Context, freqs ...models.Frequency) ([]*models.Master, error) {
	names := make([]string, len(freqs))
	for i, f := range freqs {
		names[i] = string(f)
	}
	query := `SELECT ` + masterColumns + ` FROM masters WHERE active AND frequency = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list active masters: %w", err)
	}
	defer rows.Close()
	return collectMasters(rows)
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Master, error) {
	query := `SELECT ` + masterColumns + ` FROM masters WHERE tenant_id = $1 OR tenant_id IS NULL`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list masters: %w", err)
	}
	defer rows.Close()
	return collectMasters(rows)
}

func (s *PostgresStore) Update(ctx context.Context, m *models.Master) error {
	query := `
		UPDATE masters SET
			category = $2, frequency = $3, rule_type = $4, rule_day = $5,
			fiscal_start_month = $6, dependency_codes = $7, workflow_steps = $8,
			active = $9, updated_at = $10
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		m.ID.String(), m.Category, string(m.Frequency), string(m.Rule.Type),
		m.Rule.Day, int(m.Rule.FiscalStartMonth),
		pq.Array(m.DependencyCodes), pq.Array(m.WorkflowSteps),
		m.Active, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update master: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update master rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type masterRow interface {
	Scan(dest ...any) error
}

func scanMaster(row masterRow) (*models.Master, error) {
	var (
		m           models.Master
		idStr       string
		tenantIDStr sql.NullString
		freq        string
		ruleType    string
		fiscalMonth int
		deps        pq.StringArray
		steps       pq.StringArray
	)
	if err := row.Scan(&idStr, &tenantIDStr, &m.Code, &m.Category, &freq,
		&ruleType, &m.Rule.Day, &fiscalMonth, &deps, &steps,
		&m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	masterID, err := id.ParseMasterID(idStr)
	if err != nil {
		return nil, fmt.Errorf("scan master id: %w", err)
	}
	m.ID = masterID
	if tenantIDStr.Valid {
		tenantID, err := id.ParseTenantID(tenantIDStr.String)
		if err != nil {
			return nil, fmt.Errorf("scan master tenant id: %w", err)
		}
		m.TenantID = &tenantID
	}
	m.Frequency = models.Frequency(freq)
	m.Rule.Type = models.RuleType(ruleType)
	m.Rule.FiscalStartMonth = time.Month(fiscalMonth)
	m.DependencyCodes = []string(deps)
	m.WorkflowSteps = []string(steps)
	return &m, nil
}

func collectMasters(rows *sql.Rows) ([]*models.Master, error) {
	var out []*models.Master
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan master: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate masters: %w", err)
	}
	return out, nil
}
