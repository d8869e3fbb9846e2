// Package postgres holds the relational schema shared by the postgres stores,
// the integration test harness, and first-boot migration.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Schema is the full DDL. The UNIQUE NULLS NOT DISTINCT index on masters and
// the (master_id, entity_id, period_start) unique constraint on instances are
// load-bearing: instance generation relies on the latter as its sole
// concurrency-safety mechanism, so it must live in the storage layer.
const Schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	secret_hash TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS tenants_name_key ON tenants (LOWER(name));

CREATE TABLE IF NOT EXISTS entities (
	id         UUID PRIMARY KEY,
	tenant_id  UUID NOT NULL REFERENCES tenants (id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_tenant_idx ON entities (tenant_id);

CREATE TABLE IF NOT EXISTS role_assignments (
	tenant_id  UUID NOT NULL REFERENCES tenants (id),
	role_code  TEXT NOT NULL,
	user_id    UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, role_code)
);

CREATE TABLE IF NOT EXISTS masters (
	id                 UUID PRIMARY KEY,
	tenant_id          UUID REFERENCES tenants (id),
	code               TEXT NOT NULL,
	category           TEXT NOT NULL,
	frequency          TEXT NOT NULL,
	rule_type          TEXT NOT NULL,
	rule_day           INT NOT NULL DEFAULT 0,
	fiscal_start_month INT NOT NULL DEFAULT 0,
	dependency_codes   TEXT[] NOT NULL DEFAULT '{}',
	workflow_steps     TEXT[] NOT NULL DEFAULT '{}',
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	UNIQUE NULLS NOT DISTINCT (tenant_id, code)
);

CREATE TABLE IF NOT EXISTS instances (
	id               UUID PRIMARY KEY,
	master_id        UUID NOT NULL REFERENCES masters (id),
	entity_id        UUID NOT NULL REFERENCES entities (id),
	tenant_id        UUID NOT NULL REFERENCES tenants (id),
	period_start     DATE NOT NULL,
	period_end       DATE NOT NULL,
	due_date         DATE,
	status           TEXT NOT NULL,
	rag              TEXT NOT NULL,
	prior_status     TEXT,
	owner_id         UUID,
	approver_id      UUID,
	blocked_by       UUID REFERENCES instances (id),
	needs_assignment BOOLEAN NOT NULL DEFAULT FALSE,
	filed_at         TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ,
	version          BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (master_id, entity_id, period_start)
);
CREATE INDEX IF NOT EXISTS instances_tenant_status_idx ON instances (tenant_id, status);
CREATE INDEX IF NOT EXISTS instances_due_date_idx ON instances (due_date) WHERE due_date IS NOT NULL;
CREATE INDEX IF NOT EXISTS instances_blocked_by_idx ON instances (blocked_by) WHERE blocked_by IS NOT NULL;

CREATE TABLE IF NOT EXISTS workflow_tasks (
	id          UUID PRIMARY KEY,
	instance_id UUID NOT NULL REFERENCES instances (id),
	seq         INT NOT NULL,
	name        TEXT NOT NULL,
	assignee_id UUID,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (instance_id, seq)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id          BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	tenant_id   UUID NOT NULL,
	instance_id UUID NOT NULL,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	from_rag    TEXT NOT NULL,
	to_rag      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_instance_idx ON audit_events (instance_id);
`

// Migrate applies the schema. Statements are idempotent so repeated boots are
// safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// IsUniqueViolation classifies a unique-constraint error from either the pq
// or the pgx stdlib driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
