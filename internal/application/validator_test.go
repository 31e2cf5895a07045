package application

import (
	"testing"

	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
)

func payrollRow(index int, code, name, base, overtime, allowance, deduction string) spreadsheet.UploadRow {
	return spreadsheet.UploadRow{
		RowIndex: index,
		RawFields: map[string]string{
			spreadsheet.ColumnEmployeeCode: code,
			spreadsheet.ColumnName:         name,
			spreadsheet.ColumnDepartment:   "営業部",
			spreadsheet.ColumnBaseSalary:   base,
			spreadsheet.ColumnOvertimePay:  overtime,
			spreadsheet.ColumnAllowance:    allowance,
			spreadsheet.ColumnDeduction:    deduction,
		},
	}
}

func foundMatch(id string) matching.Result {
	return matching.Result{Status: matching.StatusFound, EmployeeID: id, MatchedBy: matching.MatchedByCode, Candidates: 1}
}

func TestValidator_ValidateRow(t *testing.T) {
	t.Parallel()

	t.Run("clean row is valid with parsed amounts", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(10_000_000)
		record := validator.ValidateRow(payrollRow(1, "E001", "山田太郎", "250,000", "¥12000", "", "30000"), foundMatch("emp-1"), false, DuplicateReject)

		if record.Severity() != SeverityValid {
			t.Fatalf("expected valid, got %s with errors %+v", record.Severity(), record.FieldErrors)
		}
		want := EntryAmounts{BaseSalary: 250000, OvertimePay: 12000, Allowance: 0, Deduction: 30000}
		if record.Amounts != want {
			t.Fatalf("expected amounts %+v, got %+v", want, record.Amounts)
		}
		if record.Amounts.NetPay() != 232000 {
			t.Fatalf("expected net pay 232000, got %d", record.Amounts.NetPay())
		}
	})

	t.Run("unmatched employee is invalid", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(0)
		record := validator.ValidateRow(payrollRow(2, "E404", "不明", "250000", "", "", ""), matching.Result{Status: matching.StatusNotFound}, false, DuplicateReject)

		if record.Severity() != SeverityInvalid {
			t.Fatalf("expected invalid, got %s", record.Severity())
		}
		if !hasIssue(record.FieldErrors, "employee") {
			t.Fatalf("expected employee field error, got %+v", record.FieldErrors)
		}
	})

	t.Run("ambiguous match reports candidate count", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(0)
		record := validator.ValidateRow(payrollRow(3, "", "佐藤花子", "250000", "", "", ""), matching.Result{Status: matching.StatusAmbiguous, Candidates: 3}, false, DuplicateReject)

		if record.Severity() != SeverityInvalid {
			t.Fatalf("expected invalid, got %s", record.Severity())
		}
		if !hasIssue(record.FieldErrors, "employee") {
			t.Fatalf("expected employee field error, got %+v", record.FieldErrors)
		}
	})

	t.Run("missing and malformed amounts are errors", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(0)
		record := validator.ValidateRow(payrollRow(4, "E001", "山田太郎", "", "abc", "-500", ""), foundMatch("emp-1"), false, DuplicateReject)

		if record.Severity() != SeverityInvalid {
			t.Fatalf("expected invalid, got %s", record.Severity())
		}
		for _, field := range []string{spreadsheet.ColumnBaseSalary, spreadsheet.ColumnOvertimePay, spreadsheet.ColumnAllowance} {
			if !hasIssue(record.FieldErrors, field) {
				t.Fatalf("expected error on %s, got %+v", field, record.FieldErrors)
			}
		}
	})

	t.Run("large amounts warn instead of failing", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(1_000_000)
		record := validator.ValidateRow(payrollRow(5, "E001", "山田太郎", "2000000", "", "", ""), foundMatch("emp-1"), false, DuplicateReject)

		if record.Severity() != SeverityWarning {
			t.Fatalf("expected warning, got %s with errors %+v", record.Severity(), record.FieldErrors)
		}
		if !hasIssue(record.FieldWarnings, spreadsheet.ColumnBaseSalary) {
			t.Fatalf("expected base salary warning, got %+v", record.FieldWarnings)
		}
	})

	t.Run("duplicate period severity follows the mode", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(0)
		base := payrollRow(6, "E001", "山田太郎", "250000", "", "", "")

		rejected := validator.ValidateRow(base, foundMatch("emp-1"), true, DuplicateReject)
		if rejected.Severity() != SeverityInvalid || !hasIssue(rejected.FieldErrors, "period") {
			t.Fatalf("expected period error under reject, got %+v", rejected)
		}

		skipped := validator.ValidateRow(base, foundMatch("emp-1"), true, DuplicateSkip)
		if skipped.Severity() != SeverityWarning || !hasIssue(skipped.FieldWarnings, "period") {
			t.Fatalf("expected period warning under skip, got %+v", skipped)
		}

		overwritten := validator.ValidateRow(base, foundMatch("emp-1"), true, DuplicateOverwrite)
		if overwritten.Severity() != SeverityWarning || !hasIssue(overwritten.FieldWarnings, "period") {
			t.Fatalf("expected period warning under overwrite, got %+v", overwritten)
		}
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	records := []ValidatedRecord{
		{Match: foundMatch("emp-1"), Amounts: EntryAmounts{BaseSalary: 100}},
		{Match: foundMatch("emp-2"), Amounts: EntryAmounts{BaseSalary: 200}, FieldWarnings: []FieldIssue{{Field: "base_salary"}}},
		{Match: matching.Result{Status: matching.StatusNotFound}, Amounts: EntryAmounts{BaseSalary: 400}},
	}

	summary := summarize(records)
	if summary.ValidCount != 1 || summary.WarningCount != 1 || summary.InvalidCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	// Invalid rows never commit, so their figures stay out of the total.
	if summary.TotalNetPay != 300 {
		t.Fatalf("expected total net pay 300, got %d", summary.TotalNetPay)
	}
}

func hasIssue(issues []FieldIssue, field string) bool {
	for _, issue := range issues {
		if issue.Field == field {
			return true
		}
	}
	return false
}
