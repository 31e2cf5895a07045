package application

import (
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
)

// Severity classifies a staged record after matching and validation.
type Severity string

const (
	SeverityValid   Severity = "valid"
	SeverityWarning Severity = "warning"
	SeverityInvalid Severity = "invalid"
)

// DuplicateMode decides how rows colliding with an already persisted
// (employee, period) entry are treated.
type DuplicateMode string

const (
	// DuplicateReject treats a collision as an error. At preview it marks the
	// row invalid; at confirm any collision aborts the whole operation.
	DuplicateReject DuplicateMode = "reject"
	// DuplicateSkip leaves the existing entry untouched and reports the row
	// as skipped.
	DuplicateSkip DuplicateMode = "skip"
	// DuplicateOverwrite replaces the existing entry's figures.
	DuplicateOverwrite DuplicateMode = "overwrite"
)

// ParseDuplicateMode validates a caller-supplied mode string. The empty
// string maps to DuplicateReject, the conservative default.
func ParseDuplicateMode(value string) (DuplicateMode, bool) {
	switch DuplicateMode(value) {
	case "":
		return DuplicateReject, true
	case DuplicateReject, DuplicateSkip, DuplicateOverwrite:
		return DuplicateMode(value), true
	default:
		return "", false
	}
}

// FieldIssue is one validation finding on a named field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// EntryAmounts holds the monetary figures of one payroll row in yen.
type EntryAmounts struct {
	BaseSalary  int64 `json:"base_salary"`
	OvertimePay int64 `json:"overtime_pay"`
	Allowance   int64 `json:"allowance"`
	Deduction   int64 `json:"deduction"`
}

// GrossPay is the sum of all earnings.
func (a EntryAmounts) GrossPay() int64 {
	return a.BaseSalary + a.OvertimePay + a.Allowance
}

// NetPay is gross pay minus deductions.
func (a EntryAmounts) NetPay() int64 {
	return a.GrossPay() - a.Deduction
}

// ValidatedRecord is one upload row after matching and validation, as staged
// in a preview session. EmployeeCode, Name and Department echo the raw cell
// values for display regardless of the match outcome.
type ValidatedRecord struct {
	RowIndex      int             `json:"row_index"`
	EmployeeCode  string          `json:"employee_code"`
	Name          string          `json:"name"`
	Department    string          `json:"department"`
	Match         matching.Result `json:"match"`
	Amounts       EntryAmounts    `json:"amounts"`
	FieldErrors   []FieldIssue    `json:"field_errors,omitempty"`
	FieldWarnings []FieldIssue    `json:"field_warnings,omitempty"`
	// Duplicate marks a row whose (employee, period) pair already had a
	// persisted entry at staging time.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Severity derives the record's classification. It is never stored, so the
// three signals cannot drift apart.
func (r ValidatedRecord) Severity() Severity {
	if len(r.FieldErrors) > 0 || r.Match.Status != matching.StatusFound {
		return SeverityInvalid
	}
	if len(r.FieldWarnings) > 0 {
		return SeverityWarning
	}
	return SeverityValid
}

// Summary aggregates a staged batch for display.
type Summary struct {
	ValidCount   int   `json:"valid_count"`
	WarningCount int   `json:"warning_count"`
	InvalidCount int   `json:"invalid_count"`
	TotalNetPay  int64 `json:"total_net_pay"`
}

// summarize folds the records of a batch. TotalNetPay covers only rows that
// would be persisted on confirm, so it matches what the user is accepting.
func summarize(records []ValidatedRecord) Summary {
	var summary Summary
	for _, record := range records {
		switch record.Severity() {
		case SeverityValid:
			summary.ValidCount++
			summary.TotalNetPay += record.Amounts.NetPay()
		case SeverityWarning:
			summary.WarningCount++
			summary.TotalNetPay += record.Amounts.NetPay()
		default:
			summary.InvalidCount++
		}
	}
	return summary
}

// PreviewSession is one staged upload awaiting confirmation or expiry.
type PreviewSession struct {
	Token     string            `json:"token"`
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	Records   []ValidatedRecord `json:"records"`
	Summary   Summary           `json:"summary"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	// SizeBytes is the session's accounted share of the staging budget.
	SizeBytes int64 `json:"-"`
}

// Outcome classifies what happened to one row during commit.
type Outcome string

const (
	OutcomeSaved   Outcome = "saved"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RowOutcome reports the commit result for a single staged row.
type RowOutcome struct {
	RowIndex int     `json:"row_index"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
}

// CommitResult is the durable outcome of a confirmed preview. Replaying the
// same idempotency key returns the identical value.
type CommitResult struct {
	IdempotencyKey string       `json:"idempotency_key"`
	SavedCount     int          `json:"saved_count"`
	FailedCount    int          `json:"failed_count"`
	PerRow         []RowOutcome `json:"per_row"`
}
