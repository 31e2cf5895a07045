package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
)

// CommitLedger captures the durable-storage interactions of a confirm.
type CommitLedger interface {
	ExistingEmployeeIDs(ctx context.Context, year, month int, employeeIDs []string) (map[string]bool, error)
	InsertEntry(ctx context.Context, entry persistence.PayrollEntry) error
	UpsertEntry(ctx context.Context, entry persistence.PayrollEntry) error
	GetCommitRecord(ctx context.Context, idempotencyKey string) (persistence.CommitRecord, error)
	PutCommitRecord(ctx context.Context, record persistence.CommitRecord) error
}

// RetryFunc runs fn, retrying transient storage failures. A nil RetryFunc
// runs fn once.
type RetryFunc func(ctx context.Context, fn func() error) error

// CommitService turns a staged preview into durable payroll entries. Commits
// are idempotent per key, serialized per token, and best-effort per row: one
// row's failure never rolls back another's write.
type CommitService struct {
	store       *PreviewStore
	ledger      CommitLedger
	idGenerator func() string
	now         func() time.Time
	retry       RetryFunc
	logger      *slog.Logger

	mu     sync.Mutex
	tokens map[string]*tokenLock
}

type tokenLock struct {
	mu   sync.Mutex
	refs int
}

// NewCommitService wires dependencies for confirm operations.
func NewCommitService(store *PreviewStore, ledger CommitLedger, idGenerator func() string, now func() time.Time, retry RetryFunc, logger *slog.Logger) *CommitService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if retry == nil {
		retry = func(ctx context.Context, fn func() error) error { return fn() }
	}
	return &CommitService{
		store:       store,
		ledger:      ledger,
		idGenerator: idGenerator,
		now:         now,
		retry:       retry,
		logger:      defaultLogger(logger),
		tokens:      make(map[string]*tokenLock),
	}
}

// ConfirmParams carries one confirm request.
type ConfirmParams struct {
	Token          string
	IdempotencyKey string
	Mode           DuplicateMode
}

// Confirm persists the committable rows of a staged preview. Replaying an
// idempotency key returns the stored result without touching payroll state.
// Under DuplicateReject any commit-time collision aborts before the first
// write and the session stays staged; a storage outage that fails every row
// likewise leaves the session retryable.
func (s *CommitService) Confirm(ctx context.Context, params ConfirmParams) (result CommitResult, err error) {
	logger := serviceLogger(ctx, s.logger, "commit", "confirm",
		"idempotency_key", params.IdempotencyKey, "duplicate_mode", string(params.Mode))
	defer func() {
		if err != nil {
			logger.Warn("confirm failed", "error_kind", ErrorKind(err), "error", err)
			return
		}
		logger.Info("confirm finished", "saved", result.SavedCount, "failed", result.FailedCount)
	}()

	if err = validateConfirmParams(params); err != nil {
		return CommitResult{}, err
	}

	unlock := s.lockToken(params.Token)
	defer unlock()

	// Replay check first: a repeated request must succeed even after the
	// session itself is long gone.
	if stored, found, replayErr := s.storedResult(ctx, params); replayErr != nil {
		return CommitResult{}, replayErr
	} else if found {
		logger.Info("confirm replayed from stored result")
		return stored, nil
	}

	session, err := s.store.BeginConfirm(params.Token)
	if err != nil {
		return CommitResult{}, err
	}

	existing, err := s.commitTimeCollisions(ctx, session)
	if err != nil {
		s.store.AbortConfirm(params.Token)
		return CommitResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if params.Mode == DuplicateReject && len(existing) > 0 {
		s.store.AbortConfirm(params.Token)
		return CommitResult{}, fmt.Errorf("%w: %d rows collide with existing entries", ErrConflict, len(existing))
	}

	result = s.persistRows(ctx, session, params, existing)

	// A batch where storage rejected every attempted write is an outage, not
	// an outcome. Leave the session staged and let the caller retry.
	if result.SavedCount == 0 && result.FailedCount > 0 {
		s.store.AbortConfirm(params.Token)
		return CommitResult{}, ErrPersistenceFailure
	}

	if err := s.recordResult(ctx, params, result); err != nil {
		if errors.Is(err, ErrConflict) {
			s.store.AbortConfirm(params.Token)
			return CommitResult{}, err
		}
		// Rows are durably written; losing the replay record only weakens
		// protection against a re-sent request, and the unique period index
		// still keeps a replay from double-paying anyone.
		logger.Warn("commit record write failed", "error", err)
	}

	s.store.CompleteConfirm(params.Token)
	return result, nil
}

// storedResult looks up a prior commit under the same idempotency key.
func (s *CommitService) storedResult(ctx context.Context, params ConfirmParams) (CommitResult, bool, error) {
	record, err := s.ledger.GetCommitRecord(ctx, params.IdempotencyKey)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return CommitResult{}, false, nil
		}
		return CommitResult{}, false, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if record.Token != params.Token {
		return CommitResult{}, false, fmt.Errorf("%w: idempotency key already used for another upload", ErrConflict)
	}

	var result CommitResult
	if err := json.Unmarshal([]byte(record.ResultJSON), &result); err != nil {
		return CommitResult{}, false, fmt.Errorf("decode stored commit result: %w", err)
	}
	return result, true, nil
}

// commitTimeCollisions re-checks the duplicate-period state right before
// writing; entries may have appeared since the preview was staged.
func (s *CommitService) commitTimeCollisions(ctx context.Context, session PreviewSession) (map[string]bool, error) {
	ids := make([]string, 0, len(session.Records))
	seen := make(map[string]struct{}, len(session.Records))
	for _, record := range session.Records {
		if record.Severity() == SeverityInvalid {
			continue
		}
		id := record.Match.EmployeeID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.ledger.ExistingEmployeeIDs(ctx, session.Year, session.Month, ids)
}

// persistRows writes the committable rows one statement at a time and
// reports every row's outcome.
func (s *CommitService) persistRows(ctx context.Context, session PreviewSession, params ConfirmParams, existing map[string]bool) CommitResult {
	result := CommitResult{
		IdempotencyKey: params.IdempotencyKey,
		PerRow:         make([]RowOutcome, 0, len(session.Records)),
	}

	for _, record := range session.Records {
		outcome := RowOutcome{RowIndex: record.RowIndex}

		switch {
		case record.Severity() == SeverityInvalid:
			outcome.Outcome = OutcomeSkipped
			outcome.Reason = "row failed validation"
		case existing[record.Match.EmployeeID] && params.Mode == DuplicateSkip:
			outcome.Outcome = OutcomeSkipped
			outcome.Reason = "entry already exists for this period"
		default:
			outcome = s.persistRow(ctx, session, params.Mode, record)
		}

		switch outcome.Outcome {
		case OutcomeSaved:
			result.SavedCount++
		case OutcomeFailed:
			result.FailedCount++
		}
		result.PerRow = append(result.PerRow, outcome)
	}

	return result
}

func (s *CommitService) persistRow(ctx context.Context, session PreviewSession, mode DuplicateMode, record ValidatedRecord) RowOutcome {
	entry := persistence.PayrollEntry{
		ID:          s.idGenerator(),
		EmployeeID:  record.Match.EmployeeID,
		Year:        session.Year,
		Month:       session.Month,
		BaseSalary:  record.Amounts.BaseSalary,
		OvertimePay: record.Amounts.OvertimePay,
		Allowance:   record.Amounts.Allowance,
		Deduction:   record.Amounts.Deduction,
		CreatedAt:   s.now(),
	}

	write := func() error { return s.ledger.InsertEntry(ctx, entry) }
	if mode == DuplicateOverwrite {
		write = func() error { return s.ledger.UpsertEntry(ctx, entry) }
	}

	if err := s.retry(ctx, write); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			// The entry appeared between the collision re-check and this
			// write. Under skip semantics that is a skip, not a failure.
			if mode == DuplicateSkip {
				return RowOutcome{RowIndex: record.RowIndex, Outcome: OutcomeSkipped, Reason: "entry already exists for this period"}
			}
			return RowOutcome{RowIndex: record.RowIndex, Outcome: OutcomeFailed, Reason: "entry already exists for this period"}
		}
		return RowOutcome{RowIndex: record.RowIndex, Outcome: OutcomeFailed, Reason: "storage write failed"}
	}
	return RowOutcome{RowIndex: record.RowIndex, Outcome: OutcomeSaved}
}

// recordResult stores the outcome under the idempotency key. A duplicate key
// here means another process committed the same key concurrently; the caller
// maps that back to replay-or-conflict.
func (s *CommitService) recordResult(ctx context.Context, params ConfirmParams, result CommitResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode commit result: %w", err)
	}

	err = s.ledger.PutCommitRecord(ctx, persistence.CommitRecord{
		IdempotencyKey: params.IdempotencyKey,
		Token:          params.Token,
		ResultJSON:     string(payload),
		CreatedAt:      s.now(),
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: idempotency key committed concurrently", ErrConflict)
	}
	return err
}

// lockToken serializes confirms per token so a concurrent request waits for
// the in-flight commit and then hits the replay path instead of racing it.
func (s *CommitService) lockToken(token string) func() {
	s.mu.Lock()
	lock, ok := s.tokens[token]
	if !ok {
		lock = &tokenLock{}
		s.tokens[token] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.tokens, token)
		}
		s.mu.Unlock()
	}
}

func validateConfirmParams(params ConfirmParams) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.Token) == "" {
		vErr.add("token", "token is required")
	}
	if strings.TrimSpace(params.IdempotencyKey) == "" {
		vErr.add("idempotency_key", "idempotency key is required")
	}
	switch params.Mode {
	case DuplicateReject, DuplicateSkip, DuplicateOverwrite:
	default:
		vErr.add("duplicate_mode", "must be one of reject, skip, overwrite")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
