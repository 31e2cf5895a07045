package sqlite

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_employees_name ON employees(name)`,
	`CREATE TABLE IF NOT EXISTS payroll_entries (
		id           TEXT PRIMARY KEY,
		employee_id  TEXT NOT NULL REFERENCES employees(id),
		year         INTEGER NOT NULL CHECK (year >= 2000),
		month        INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		base_salary  INTEGER NOT NULL CHECK (base_salary >= 0),
		overtime_pay INTEGER NOT NULL DEFAULT 0 CHECK (overtime_pay >= 0),
		allowance    INTEGER NOT NULL DEFAULT 0 CHECK (allowance >= 0),
		deduction    INTEGER NOT NULL DEFAULT 0 CHECK (deduction >= 0),
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		UNIQUE (employee_id, year, month)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payroll_entries_period ON payroll_entries(year, month)`,
	`CREATE TABLE IF NOT EXISTS commit_records (
		idempotency_key TEXT PRIMARY KEY,
		token           TEXT NOT NULL,
		result_json     TEXT NOT NULL,
		created_at      TEXT NOT NULL
	)`,
}

// Migrate creates the schema when absent. Statements are idempotent so the
// call is safe on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
