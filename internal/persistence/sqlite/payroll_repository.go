package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
)

// PayrollRepository implements persistence.PayrollRepository using SQLite.
type PayrollRepository struct {
	pool *ConnectionPool
}

// NewPayrollRepository creates a new SQLite payroll repository.
func NewPayrollRepository(pool *ConnectionPool) *PayrollRepository {
	return &PayrollRepository{pool: pool}
}

// ExistingEmployeeIDs reports which employees already have an entry for the
// period. The whole batch resolves in a single query.
func (r *PayrollRepository) ExistingEmployeeIDs(ctx context.Context, year, month int, employeeIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return existing, nil
	}

	placeholders := strings.Repeat("?,", len(employeeIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(employeeIDs)+2)
	args = append(args, year, month)
	for _, id := range employeeIDs {
		args = append(args, id)
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT employee_id FROM payroll_entries
		WHERE year = ? AND month = ? AND employee_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return existing, nil
}

// InsertEntry persists a new payroll entry. A collision on the
// (employee, period) unique index surfaces as persistence.ErrDuplicate.
func (r *PayrollRepository) InsertEntry(ctx context.Context, entry persistence.PayrollEntry) error {
	normalized, err := normalizeEntry(entry)
	if err != nil {
		return err
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO payroll_entries
			(id, employee_id, year, month, base_salary, overtime_pay, allowance, deduction, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entryArgs(normalized)...)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// UpsertEntry persists an entry, replacing the figures of an existing
// (employee, period) entry when present. The original entry's id and
// created_at survive an overwrite.
func (r *PayrollRepository) UpsertEntry(ctx context.Context, entry persistence.PayrollEntry) error {
	normalized, err := normalizeEntry(entry)
	if err != nil {
		return err
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO payroll_entries
			(id, employee_id, year, month, base_salary, overtime_pay, allowance, deduction, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (employee_id, year, month) DO UPDATE SET
			base_salary  = excluded.base_salary,
			overtime_pay = excluded.overtime_pay,
			allowance    = excluded.allowance,
			deduction    = excluded.deduction,
			updated_at   = excluded.updated_at
	`, entryArgs(normalized)...)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// ListEntries returns all entries for the period ordered by employee.
func (r *PayrollRepository) ListEntries(ctx context.Context, year, month int) ([]persistence.PayrollEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, employee_id, year, month, base_salary, overtime_pay, allowance, deduction, created_at, updated_at
		FROM payroll_entries
		WHERE year = ? AND month = ?
		ORDER BY employee_id
	`, year, month)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []persistence.PayrollEntry
	for rows.Next() {
		var entry persistence.PayrollEntry
		var createdAtStr, updatedAtStr string
		err := rows.Scan(
			&entry.ID,
			&entry.EmployeeID,
			&entry.Year,
			&entry.Month,
			&entry.BaseSalary,
			&entry.OvertimePay,
			&entry.Allowance,
			&entry.Deduction,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if entry.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// GetCommitRecord retrieves the stored outcome for an idempotency key.
func (r *PayrollRepository) GetCommitRecord(ctx context.Context, idempotencyKey string) (persistence.CommitRecord, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return persistence.CommitRecord{}, persistence.ErrNotFound
	}

	var record persistence.CommitRecord
	var createdAtStr string
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT idempotency_key, token, result_json, created_at
		FROM commit_records
		WHERE idempotency_key = ?
	`, key).Scan(&record.IdempotencyKey, &record.Token, &record.ResultJSON, &createdAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.CommitRecord{}, persistence.ErrNotFound
		}
		return persistence.CommitRecord{}, mapError(err)
	}

	if record.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.CommitRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return record, nil
}

// PutCommitRecord stores a commit outcome. Writing the same key twice is a
// duplicate; racing committers use that to detect a lost serialization race.
func (r *PayrollRepository) PutCommitRecord(ctx context.Context, record persistence.CommitRecord) error {
	if strings.TrimSpace(record.IdempotencyKey) == "" || strings.TrimSpace(record.Token) == "" {
		return persistence.ErrConstraintViolation
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO commit_records (idempotency_key, token, result_json, created_at)
		VALUES (?, ?, ?, ?)
	`,
		strings.TrimSpace(record.IdempotencyKey),
		strings.TrimSpace(record.Token),
		record.ResultJSON,
		record.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func normalizeEntry(entry persistence.PayrollEntry) (persistence.PayrollEntry, error) {
	if entry.ID == "" || entry.EmployeeID == "" {
		return persistence.PayrollEntry{}, persistence.ErrConstraintViolation
	}
	if entry.Month < 1 || entry.Month > 12 {
		return persistence.PayrollEntry{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func entryArgs(entry persistence.PayrollEntry) []any {
	return []any{
		entry.ID,
		entry.EmployeeID,
		entry.Year,
		entry.Month,
		entry.BaseSalary,
		entry.OvertimePay,
		entry.Allowance,
		entry.Deduction,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
	}
}
