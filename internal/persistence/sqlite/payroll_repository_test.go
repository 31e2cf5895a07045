package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
)

func setupPayrollRepositoryTest(t *testing.T) *PayrollRepository {
	t.Helper()

	pool := setupPool(t)
	employees := NewEmployeeRepository(pool)
	seedEmployee(t, employees, "emp-1", "E001", "山田太郎", "営業部")
	seedEmployee(t, employees, "emp-2", "E002", "佐藤花子", "総務部")
	return NewPayrollRepository(pool)
}

func payrollEntry(id, employeeID string, base int64) persistence.PayrollEntry {
	return persistence.PayrollEntry{
		ID:         id,
		EmployeeID: employeeID,
		Year:       2025,
		Month:      4,
		BaseSalary: base,
		Deduction:  30000,
	}
}

func TestPayrollRepository_InsertAndList(t *testing.T) {
	repo := setupPayrollRepositoryTest(t)
	ctx := context.Background()

	if err := repo.InsertEntry(ctx, payrollEntry("entry-2", "emp-2", 300000)); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if err := repo.InsertEntry(ctx, payrollEntry("entry-1", "emp-1", 250000)); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	entries, err := repo.ListEntries(ctx, 2025, 4)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	// Ordered by employee, not insertion.
	if entries[0].EmployeeID != "emp-1" || entries[1].EmployeeID != "emp-2" {
		t.Errorf("Expected employee ordering, got %s then %s", entries[0].EmployeeID, entries[1].EmployeeID)
	}
	if entries[0].BaseSalary != 250000 || entries[0].Deduction != 30000 {
		t.Errorf("Unexpected figures: %+v", entries[0])
	}
	if entries[0].NetPay() != 220000 {
		t.Errorf("Expected net pay 220000, got %d", entries[0].NetPay())
	}

	other, err := repo.ListEntries(ctx, 2025, 5)
	if err != nil {
		t.Fatalf("ListEntries for empty period failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no entries for other period, got %d", len(other))
	}
}

func TestPayrollRepository_InsertDuplicatePeriod(t *testing.T) {
	repo := setupPayrollRepositoryTest(t)
	ctx := context.Background()

	if err := repo.InsertEntry(ctx, payrollEntry("entry-1", "emp-1", 250000)); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	err := repo.InsertEntry(ctx, payrollEntry("entry-dup", "emp-1", 260000))
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
}

func TestPayrollRepository_UpsertKeepsIdentity(t *testing.T) {
	repo := setupPayrollRepositoryTest(t)
	ctx := context.Background()

	if err := repo.InsertEntry(ctx, payrollEntry("entry-1", "emp-1", 250000)); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	before, err := repo.ListEntries(ctx, 2025, 4)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}

	if err := repo.UpsertEntry(ctx, payrollEntry("entry-new", "emp-1", 280000)); err != nil {
		t.Fatalf("UpsertEntry failed: %v", err)
	}

	after, err := repo.ListEntries(ctx, 2025, 4)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("Expected a single entry after upsert, got %d", len(after))
	}

	// The overwrite replaces the figures but keeps the original row identity.
	if after[0].ID != "entry-1" {
		t.Errorf("Expected original id to survive, got %s", after[0].ID)
	}
	if !after[0].CreatedAt.Equal(before[0].CreatedAt) {
		t.Errorf("Expected created_at to survive, got %v vs %v", after[0].CreatedAt, before[0].CreatedAt)
	}
	if after[0].BaseSalary != 280000 {
		t.Errorf("Expected updated base salary 280000, got %d", after[0].BaseSalary)
	}
}

func TestPayrollRepository_ExistingEmployeeIDs(t *testing.T) {
	repo := setupPayrollRepositoryTest(t)
	ctx := context.Background()

	if err := repo.InsertEntry(ctx, payrollEntry("entry-1", "emp-1", 250000)); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	existing, err := repo.ExistingEmployeeIDs(ctx, 2025, 4, []string{"emp-1", "emp-2"})
	if err != nil {
		t.Fatalf("ExistingEmployeeIDs failed: %v", err)
	}
	if !existing["emp-1"] || existing["emp-2"] {
		t.Errorf("Expected only emp-1 flagged, got %v", existing)
	}

	empty, err := repo.ExistingEmployeeIDs(ctx, 2025, 4, nil)
	if err != nil {
		t.Fatalf("ExistingEmployeeIDs with empty batch failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty result for empty batch, got %v", empty)
	}
}

func TestPayrollRepository_CommitRecords(t *testing.T) {
	repo := setupPayrollRepositoryTest(t)
	ctx := context.Background()

	record := persistence.CommitRecord{
		IdempotencyKey: "key-1",
		Token:          "tok-1",
		ResultJSON:     `{"saved_count":1}`,
	}
	if err := repo.PutCommitRecord(ctx, record); err != nil {
		t.Fatalf("PutCommitRecord failed: %v", err)
	}

	retrieved, err := repo.GetCommitRecord(ctx, "key-1")
	if err != nil {
		t.Fatalf("GetCommitRecord failed: %v", err)
	}
	if retrieved.Token != "tok-1" || retrieved.ResultJSON != `{"saved_count":1}` {
		t.Errorf("Unexpected record: %+v", retrieved)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Errorf("Expected created_at to be set")
	}

	// The key is write-once.
	err = repo.PutCommitRecord(ctx, persistence.CommitRecord{
		IdempotencyKey: "key-1",
		Token:          "tok-other",
		ResultJSON:     `{}`,
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate on key reuse, got %v", err)
	}

	_, err = repo.GetCommitRecord(ctx, "missing")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
