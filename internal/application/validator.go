package application

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
)

// Validator applies per-row business rules to matched upload rows. It is
// stateless; the duplicate-period signal is resolved by the caller in one
// batched storage read and passed in per row.
type Validator struct {
	largeAmountThreshold int64
}

// NewValidator constructs a validator. Amounts at or above threshold yield a
// warning; a non-positive threshold disables the check.
func NewValidator(largeAmountThreshold int64) *Validator {
	return &Validator{largeAmountThreshold: largeAmountThreshold}
}

// ValidateRow classifies one row. duplicate reports whether durable storage
// already holds an entry for this employee and period; mode decides whether
// that is an error or an accepted warning.
func (v *Validator) ValidateRow(row spreadsheet.UploadRow, match matching.Result, duplicate bool, mode DuplicateMode) ValidatedRecord {
	record := ValidatedRecord{
		RowIndex:     row.RowIndex,
		EmployeeCode: row.Field(spreadsheet.ColumnEmployeeCode),
		Name:         row.Field(spreadsheet.ColumnName),
		Department:   row.Field(spreadsheet.ColumnDepartment),
		Match:        match,
		Duplicate:    duplicate,
	}

	switch match.Status {
	case matching.StatusFound:
	case matching.StatusAmbiguous:
		record.FieldErrors = append(record.FieldErrors, FieldIssue{
			Field:   "employee",
			Message: fmt.Sprintf("matches %d employees, cannot resolve", match.Candidates),
		})
	default:
		record.FieldErrors = append(record.FieldErrors, FieldIssue{
			Field:   "employee",
			Message: "no matching employee found",
		})
	}

	record.Amounts.BaseSalary = v.validateAmount(&record, spreadsheet.ColumnBaseSalary, row, true)
	record.Amounts.OvertimePay = v.validateAmount(&record, spreadsheet.ColumnOvertimePay, row, false)
	record.Amounts.Allowance = v.validateAmount(&record, spreadsheet.ColumnAllowance, row, false)
	record.Amounts.Deduction = v.validateAmount(&record, spreadsheet.ColumnDeduction, row, false)

	if duplicate {
		switch mode {
		case DuplicateSkip:
			record.FieldWarnings = append(record.FieldWarnings, FieldIssue{
				Field:   "period",
				Message: "entry already exists for this period; row will be skipped",
			})
		case DuplicateOverwrite:
			record.FieldWarnings = append(record.FieldWarnings, FieldIssue{
				Field:   "period",
				Message: "entry already exists for this period; row will overwrite it",
			})
		default:
			record.FieldErrors = append(record.FieldErrors, FieldIssue{
				Field:   "period",
				Message: "entry already exists for this period",
			})
		}
	}

	return record
}

// validateAmount parses one monetary column, recording errors for malformed
// or negative values and a warning for unusually large ones. Optional columns
// default to zero when blank.
func (v *Validator) validateAmount(record *ValidatedRecord, column string, row spreadsheet.UploadRow, required bool) int64 {
	raw := row.Field(column)
	if raw == "" {
		if required {
			record.FieldErrors = append(record.FieldErrors, FieldIssue{
				Field:   column,
				Message: "value is required",
			})
		}
		return 0
	}

	amount, err := parseAmount(raw)
	if err != nil {
		record.FieldErrors = append(record.FieldErrors, FieldIssue{
			Field:   column,
			Message: "must be a whole yen amount",
		})
		return 0
	}
	if amount < 0 {
		record.FieldErrors = append(record.FieldErrors, FieldIssue{
			Field:   column,
			Message: "must not be negative",
		})
		return 0
	}
	if v.largeAmountThreshold > 0 && amount >= v.largeAmountThreshold {
		record.FieldWarnings = append(record.FieldWarnings, FieldIssue{
			Field:   column,
			Message: fmt.Sprintf("amount %d exceeds review threshold %d", amount, v.largeAmountThreshold),
		})
	}
	return amount
}

// parseAmount reads a yen amount in the formats the source sheets use:
// plain integers, thousands separators, and an optional currency mark.
func parseAmount(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "¥")
	cleaned = strings.TrimPrefix(cleaned, "￥")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(cleaned, 10, 64)
}
