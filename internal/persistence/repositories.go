package persistence

import "context"

// EmployeeRepository exposes directory lookups used by the matcher plus the
// administrative operations needed to maintain the directory.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	FindByCode(ctx context.Context, code string) ([]Employee, error)
	FindByNameAndDepartment(ctx context.Context, name, department string) ([]Employee, error)
	FindByName(ctx context.Context, name string) ([]Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// PayrollRepository stores committed payroll entries and the idempotency
// records that guard confirmation replays.
type PayrollRepository interface {
	// ExistingEmployeeIDs reports which of the given employees already have an
	// entry for the period. A single query covers the whole batch.
	ExistingEmployeeIDs(ctx context.Context, year, month int, employeeIDs []string) (map[string]bool, error)
	// InsertEntry persists a new entry. A (employee, period) collision is
	// reported as ErrDuplicate.
	InsertEntry(ctx context.Context, entry PayrollEntry) error
	// UpsertEntry persists an entry, replacing the figures of an existing
	// (employee, period) entry when present.
	UpsertEntry(ctx context.Context, entry PayrollEntry) error
	ListEntries(ctx context.Context, year, month int) ([]PayrollEntry, error)

	GetCommitRecord(ctx context.Context, idempotencyKey string) (CommitRecord, error)
	PutCommitRecord(ctx context.Context, record CommitRecord) error
}
