package application

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
	"github.com/nukk-pain/smpain-HR-sub013/internal/testfixtures"
)

type commitLedgerStub struct {
	existing    map[string]bool
	existingErr error
	insertErr   map[string]error
	upsertErr   map[string]error
	putErr      error

	insertCalls []persistence.PayrollEntry
	upsertCalls []persistence.PayrollEntry
	records     map[string]persistence.CommitRecord
}

func newCommitLedgerStub() *commitLedgerStub {
	return &commitLedgerStub{records: make(map[string]persistence.CommitRecord)}
}

func (l *commitLedgerStub) ExistingEmployeeIDs(_ context.Context, _, _ int, ids []string) (map[string]bool, error) {
	if l.existingErr != nil {
		return nil, l.existingErr
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if l.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (l *commitLedgerStub) InsertEntry(_ context.Context, entry persistence.PayrollEntry) error {
	if err := l.insertErr[entry.EmployeeID]; err != nil {
		return err
	}
	l.insertCalls = append(l.insertCalls, entry)
	return nil
}

func (l *commitLedgerStub) UpsertEntry(_ context.Context, entry persistence.PayrollEntry) error {
	if err := l.upsertErr[entry.EmployeeID]; err != nil {
		return err
	}
	l.upsertCalls = append(l.upsertCalls, entry)
	return nil
}

func (l *commitLedgerStub) GetCommitRecord(_ context.Context, key string) (persistence.CommitRecord, error) {
	record, ok := l.records[key]
	if !ok {
		return persistence.CommitRecord{}, persistence.ErrNotFound
	}
	return record, nil
}

func (l *commitLedgerStub) PutCommitRecord(_ context.Context, record persistence.CommitRecord) error {
	if l.putErr != nil {
		return l.putErr
	}
	if _, exists := l.records[record.IdempotencyKey]; exists {
		return persistence.ErrDuplicate
	}
	l.records[record.IdempotencyKey] = record
	return nil
}

func committableRecord(index int, employeeID string, base int64) ValidatedRecord {
	return ValidatedRecord{
		RowIndex:     index,
		EmployeeCode: "E001",
		Name:         "山田太郎",
		Match:        foundMatch(employeeID),
		Amounts:      EntryAmounts{BaseSalary: base},
	}
}

func invalidRecord(index int) ValidatedRecord {
	return ValidatedRecord{
		RowIndex:    index,
		Match:       matching.Result{Status: matching.StatusNotFound},
		FieldErrors: []FieldIssue{{Field: "employee", Message: "no matching employee found"}},
	}
}

func stageSession(t *testing.T, store *PreviewStore, token string, records ...ValidatedRecord) {
	t.Helper()
	session := PreviewSession{Token: token, Year: 2025, Month: 4, Records: records, Summary: summarize(records)}
	if _, err := store.Stage(session); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
}

func newTestCommitService(store *PreviewStore, ledger CommitLedger) *CommitService {
	ids := testfixtures.NewIDGenerator("entry")
	return NewCommitService(store, ledger, ids.NextFunc(), testfixtures.NewClock(time.Time{}).NowFunc(), nil, nil)
}

func TestCommitService_Confirm(t *testing.T) {
	t.Parallel()

	t.Run("saves committable rows and skips invalid ones", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		stageSession(t, store, "tok-1",
			committableRecord(1, "emp-1", 250000),
			invalidRecord(2),
			invalidRecord(3),
		)
		svc := newTestCommitService(store, ledger)

		result, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateReject})
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}

		if result.SavedCount != 1 || result.FailedCount != 0 {
			t.Fatalf("unexpected counts %+v", result)
		}
		if len(result.PerRow) != 3 {
			t.Fatalf("expected outcomes for every row, got %d", len(result.PerRow))
		}
		if result.PerRow[0].Outcome != OutcomeSaved {
			t.Fatalf("expected row 1 saved, got %+v", result.PerRow[0])
		}
		for _, outcome := range result.PerRow[1:] {
			if outcome.Outcome != OutcomeSkipped {
				t.Fatalf("expected invalid rows skipped, got %+v", outcome)
			}
		}
		if len(ledger.insertCalls) != 1 || ledger.insertCalls[0].EmployeeID != "emp-1" {
			t.Fatalf("expected one insert for emp-1, got %+v", ledger.insertCalls)
		}
		if ledger.insertCalls[0].BaseSalary != 250000 {
			t.Fatalf("expected staged amounts persisted, got %+v", ledger.insertCalls[0])
		}

		// The session is consumed and the outcome durably recorded.
		if _, err := store.Get("tok-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected consumed session, got %v", err)
		}
		if _, ok := ledger.records["key-1"]; !ok {
			t.Fatalf("expected commit record stored")
		}
	})

	t.Run("replaying an idempotency key returns the stored result verbatim", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		stageSession(t, store, "tok-1", committableRecord(1, "emp-1", 250000))
		svc := newTestCommitService(store, ledger)

		params := ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateReject}
		first, err := svc.Confirm(context.Background(), params)
		if err != nil {
			t.Fatalf("first Confirm failed: %v", err)
		}

		second, err := svc.Confirm(context.Background(), params)
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}

		if !reflect.DeepEqual(first, second) {
			t.Fatalf("replay diverged: first %+v second %+v", first, second)
		}
		if len(ledger.insertCalls) != 1 {
			t.Fatalf("expected storage untouched on replay, got %d inserts", len(ledger.insertCalls))
		}
	})

	t.Run("reusing a key against another upload is a conflict", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		payload, _ := json.Marshal(CommitResult{IdempotencyKey: "key-1"})
		ledger.records["key-1"] = persistence.CommitRecord{IdempotencyKey: "key-1", Token: "other-token", ResultJSON: string(payload)}
		stageSession(t, store, "tok-1", committableRecord(1, "emp-1", 250000))
		svc := newTestCommitService(store, ledger)

		_, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateReject})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("expired token is not found", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(time.Time{})
		store := NewPreviewStore(PreviewStoreConfig{TTL: time.Minute, Now: clock.NowFunc()})
		ledger := newCommitLedgerStub()
		stageSession(t, store, "tok-old", committableRecord(1, "emp-1", 250000))
		svc := newTestCommitService(store, ledger)

		clock.Advance(2 * time.Minute)
		_, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-old", IdempotencyKey: "key-1", Mode: DuplicateReject})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(ledger.insertCalls) != 0 {
			t.Fatalf("expected no writes for an expired token")
		}
	})

	t.Run("reject mode aborts on commit-time collisions before any write", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		ledger.existing = map[string]bool{"emp-2": true}
		stageSession(t, store, "tok-1",
			committableRecord(1, "emp-1", 250000),
			committableRecord(2, "emp-2", 300000),
		)
		svc := newTestCommitService(store, ledger)

		_, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateReject})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if len(ledger.insertCalls) != 0 {
			t.Fatalf("expected no writes, got %+v", ledger.insertCalls)
		}

		// The session survives so the user can retry with another mode.
		if _, err := store.Get("tok-1"); err != nil {
			t.Fatalf("expected session still staged, got %v", err)
		}
		if _, ok := ledger.records["key-1"]; ok {
			t.Fatalf("expected no commit record after an aborted confirm")
		}
	})

	t.Run("skip mode reports colliding rows as skipped", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		ledger.existing = map[string]bool{"emp-2": true}
		stageSession(t, store, "tok-1",
			committableRecord(1, "emp-1", 250000),
			committableRecord(2, "emp-2", 300000),
		)
		svc := newTestCommitService(store, ledger)

		result, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateSkip})
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if result.SavedCount != 1 {
			t.Fatalf("expected one save, got %+v", result)
		}
		if result.PerRow[1].Outcome != OutcomeSkipped {
			t.Fatalf("expected colliding row skipped, got %+v", result.PerRow[1])
		}
		if len(ledger.insertCalls) != 1 || ledger.insertCalls[0].EmployeeID != "emp-1" {
			t.Fatalf("expected insert for emp-1 only, got %+v", ledger.insertCalls)
		}
	})

	t.Run("overwrite mode upserts every committable row", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		ledger.existing = map[string]bool{"emp-2": true}
		stageSession(t, store, "tok-1",
			committableRecord(1, "emp-1", 250000),
			committableRecord(2, "emp-2", 300000),
		)
		svc := newTestCommitService(store, ledger)

		result, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateOverwrite})
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if result.SavedCount != 2 {
			t.Fatalf("expected both rows saved, got %+v", result)
		}
		if len(ledger.upsertCalls) != 2 || len(ledger.insertCalls) != 0 {
			t.Fatalf("expected upserts only, got inserts %+v upserts %+v", ledger.insertCalls, ledger.upsertCalls)
		}
	})

	t.Run("a row lost to a write race fails without sinking the batch", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		ledger.insertErr = map[string]error{"emp-2": persistence.ErrDuplicate}
		stageSession(t, store, "tok-1",
			committableRecord(1, "emp-1", 250000),
			committableRecord(2, "emp-2", 300000),
		)
		svc := newTestCommitService(store, ledger)

		result, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateReject})
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if result.SavedCount != 1 || result.FailedCount != 1 {
			t.Fatalf("unexpected counts %+v", result)
		}
		if result.PerRow[1].Outcome != OutcomeFailed {
			t.Fatalf("expected raced row failed, got %+v", result.PerRow[1])
		}
	})

	t.Run("a fully failed batch leaves the session retryable", func(t *testing.T) {
		t.Parallel()

		store := NewPreviewStore(PreviewStoreConfig{})
		ledger := newCommitLedgerStub()
		ledger.insertErr = map[string]error{
			"emp-1": persistence.ErrUnavailable,
			"emp-2": persistence.ErrUnavailable,
		}
		stageSession(t, store, "tok-1",
			committableRecord(1, "emp-1", 250000),
			committableRecord(2, "emp-2", 300000),
		)
		svc := newTestCommitService(store, ledger)

		_, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1", IdempotencyKey: "key-1", Mode: DuplicateReject})
		if !errors.Is(err, ErrPersistenceFailure) {
			t.Fatalf("expected ErrPersistenceFailure, got %v", err)
		}
		if _, ok := ledger.records["key-1"]; ok {
			t.Fatalf("expected no commit record for a failed batch")
		}
		if _, err := store.Get("tok-1"); err != nil {
			t.Fatalf("expected session back for retry, got %v", err)
		}
	})

	t.Run("rejects incomplete parameters", func(t *testing.T) {
		t.Parallel()

		svc := newTestCommitService(NewPreviewStore(PreviewStoreConfig{}), newCommitLedgerStub())

		_, err := svc.Confirm(context.Background(), ConfirmParams{Token: "tok-1"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["idempotency_key"]; !ok {
			t.Fatalf("expected idempotency_key error, got %+v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["duplicate_mode"]; !ok {
			t.Fatalf("expected duplicate_mode error, got %+v", vErr.FieldErrors)
		}
	})
}
