package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
)

// RowParser extracts upload rows from a workbook stream.
type RowParser interface {
	Parse(ctx context.Context, r io.Reader) ([]spreadsheet.UploadRow, error)
	CheckSize(declared int64) error
}

// RowMatcher resolves upload rows against the employee directory.
type RowMatcher interface {
	MatchAll(ctx context.Context, rows []spreadsheet.UploadRow) ([]matching.Result, error)
}

// PayrollLedger captures the durable-storage reads the preview pipeline needs.
type PayrollLedger interface {
	ExistingEmployeeIDs(ctx context.Context, year, month int, employeeIDs []string) (map[string]bool, error)
}

// UploadService runs the preview half of the pipeline: parse, match,
// validate, and stage a batch under a fresh token.
type UploadService struct {
	parser         RowParser
	matcher        RowMatcher
	validator      *Validator
	store          *PreviewStore
	ledger         PayrollLedger
	tokenGenerator func() string
	logger         *slog.Logger
}

// NewUploadService wires dependencies for the preview pipeline.
func NewUploadService(parser RowParser, matcher RowMatcher, validator *Validator, store *PreviewStore, ledger PayrollLedger, tokenGenerator func() string, logger *slog.Logger) *UploadService {
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	return &UploadService{
		parser:         parser,
		matcher:        matcher,
		validator:      validator,
		store:          store,
		ledger:         ledger,
		tokenGenerator: tokenGenerator,
		logger:         defaultLogger(logger),
	}
}

// PreviewParams carries one upload request.
type PreviewParams struct {
	Reader io.Reader
	// DeclaredSize is the request's announced byte length, -1 when unknown.
	DeclaredSize int64
	Year         int
	Month        int
	// Mode decides how duplicate-period rows are classified at preview time.
	Mode DuplicateMode
}

// PreviewUpload parses and stages an upload. Per-row problems never fail the
// call; the whole batch is staged so the user can review errors and warnings
// alongside accepted rows. Only unreadable files, bad period inputs, and
// staging backpressure surface as errors.
func (s *UploadService) PreviewUpload(ctx context.Context, params PreviewParams) (session PreviewSession, err error) {
	logger := serviceLogger(ctx, s.logger, "upload", "preview", "year", params.Year, "month", params.Month)
	defer func() {
		if err != nil {
			logger.Warn("preview staging failed", "error_kind", ErrorKind(err), "error", err)
			return
		}
		logger.Info("preview staged",
			"token", session.Token,
			"rows", len(session.Records),
			"valid", session.Summary.ValidCount,
			"warning", session.Summary.WarningCount,
			"invalid", session.Summary.InvalidCount,
		)
	}()

	if err = validatePeriod(params.Year, params.Month); err != nil {
		return PreviewSession{}, err
	}
	if err = s.parser.CheckSize(params.DeclaredSize); err != nil {
		return PreviewSession{}, err
	}

	rows, err := s.parser.Parse(ctx, params.Reader)
	if err != nil {
		return PreviewSession{}, err
	}

	matches, err := s.matcher.MatchAll(ctx, rows)
	if err != nil {
		return PreviewSession{}, fmt.Errorf("match upload rows: %w", err)
	}

	existing, err := s.existingEntries(ctx, params.Year, params.Month, matches)
	if err != nil {
		return PreviewSession{}, fmt.Errorf("check duplicate periods: %w", err)
	}

	records := make([]ValidatedRecord, len(rows))
	for i, row := range rows {
		match := matches[i]
		duplicate := match.Status == matching.StatusFound && existing[match.EmployeeID]
		records[i] = s.validator.ValidateRow(row, match, duplicate, params.Mode)
	}

	session = PreviewSession{
		Token:   s.tokenGenerator(),
		Year:    params.Year,
		Month:   params.Month,
		Records: records,
		Summary: summarize(records),
	}

	session, err = s.store.Stage(session)
	if err != nil {
		return PreviewSession{}, err
	}
	return session, nil
}

// GetPreview returns a staged session for review.
func (s *UploadService) GetPreview(ctx context.Context, token string) (PreviewSession, error) {
	session, err := s.store.Get(token)
	if err != nil {
		serviceLogger(ctx, s.logger, "upload", "get_preview").Warn("preview lookup failed",
			"error_kind", ErrorKind(err), "error", err)
		return PreviewSession{}, err
	}
	return session, nil
}

// DiscardPreview drops a staged session. Idempotent.
func (s *UploadService) DiscardPreview(ctx context.Context, token string) {
	s.store.Discard(token)
	serviceLogger(ctx, s.logger, "upload", "discard").Info("preview discarded")
}

// existingEntries resolves the duplicate-period signal for the whole batch
// with a single storage read.
func (s *UploadService) existingEntries(ctx context.Context, year, month int, matches []matching.Result) (map[string]bool, error) {
	if s.ledger == nil {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Status != matching.StatusFound {
			continue
		}
		if _, ok := seen[match.EmployeeID]; ok {
			continue
		}
		seen[match.EmployeeID] = struct{}{}
		ids = append(ids, match.EmployeeID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.ledger.ExistingEmployeeIDs(ctx, year, month, ids)
}

func validatePeriod(year, month int) error {
	vErr := &ValidationError{}
	if year < 2000 || year > 2100 {
		vErr.add("year", "year must be between 2000 and 2100")
	}
	if month < 1 || month > 12 {
		vErr.add("month", "month must be between 1 and 12")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
