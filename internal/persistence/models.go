package persistence

import "time"

// Employee represents a directory entry the matcher resolves upload rows against.
type Employee struct {
	ID         string
	Code       string
	Name       string
	Department string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PayrollEntry represents one employee's durable payroll figures for a period.
// Amounts are yen in integer minor units; derived figures (gross, net) are
// computed from the stored components rather than persisted separately.
type PayrollEntry struct {
	ID          string
	EmployeeID  string
	Year        int
	Month       int
	BaseSalary  int64
	OvertimePay int64
	Allowance   int64
	Deduction   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GrossPay returns the sum of earnings components.
func (e PayrollEntry) GrossPay() int64 {
	return e.BaseSalary + e.OvertimePay + e.Allowance
}

// NetPay returns gross pay minus deductions.
func (e PayrollEntry) NetPay() int64 {
	return e.GrossPay() - e.Deduction
}

// CommitRecord stores the durable outcome of a confirmed upload keyed by the
// client-supplied idempotency key. ResultJSON is returned verbatim on replay.
type CommitRecord struct {
	IdempotencyKey string
	Token          string
	ResultJSON     string
	CreatedAt      time.Time
}
