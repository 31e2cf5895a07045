package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
)

// EmployeeRepository implements persistence.EmployeeRepository using SQLite.
type EmployeeRepository struct {
	pool *ConnectionPool
}

// NewEmployeeRepository creates a new SQLite employee repository.
func NewEmployeeRepository(pool *ConnectionPool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

const employeeColumns = "id, code, name, department, created_at, updated_at"

// CreateEmployee stores a new directory entry.
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" || strings.TrimSpace(employee.Code) == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO employees (id, code, name, department, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		employee.ID,
		strings.TrimSpace(employee.Code),
		strings.TrimSpace(employee.Name),
		strings.TrimSpace(employee.Department),
		employee.CreatedAt.Format(time.RFC3339),
		employee.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetEmployee retrieves a directory entry by ID.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+` FROM employees WHERE id = ?
	`, id)

	employee, err := scanEmployee(row)
	if err != nil {
		return persistence.Employee{}, mapError(err)
	}
	return employee, nil
}

// FindByCode returns employees with an exact code match. Codes are unique so
// the result holds at most one entry; the slice shape keeps the matcher's
// candidate handling uniform across lookup tiers.
func (r *EmployeeRepository) FindByCode(ctx context.Context, code string) ([]persistence.Employee, error) {
	return r.findWhere(ctx, "code = ?", strings.TrimSpace(code))
}

// FindByNameAndDepartment returns employees matching both name and department exactly.
func (r *EmployeeRepository) FindByNameAndDepartment(ctx context.Context, name, department string) ([]persistence.Employee, error) {
	return r.findWhere(ctx, "name = ? AND department = ?", strings.TrimSpace(name), strings.TrimSpace(department))
}

// FindByName returns employees matching the name exactly, across departments.
func (r *EmployeeRepository) FindByName(ctx context.Context, name string) ([]persistence.Employee, error) {
	return r.findWhere(ctx, "name = ?", strings.TrimSpace(name))
}

// ListEmployees returns all directory entries ordered by code.
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]persistence.Employee, error) {
	return r.findWhere(ctx, "1 = 1")
}

func (r *EmployeeRepository) findWhere(ctx context.Context, where string, args ...any) ([]persistence.Employee, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+employeeColumns+` FROM employees WHERE `+where+` ORDER BY code
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var employees []persistence.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return employees, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (persistence.Employee, error) {
	var employee persistence.Employee
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&employee.ID,
		&employee.Code,
		&employee.Name,
		&employee.Department,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Employee{}, persistence.ErrNotFound
		}
		return persistence.Employee{}, err
	}

	if employee.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Employee{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if employee.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Employee{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return employee, nil
}
