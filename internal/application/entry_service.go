package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
)

// EntryReader lists persisted payroll entries.
type EntryReader interface {
	ListEntries(ctx context.Context, year, month int) ([]persistence.PayrollEntry, error)
}

// EntryService exposes the read-back surface over committed payroll entries.
type EntryService struct {
	ledger EntryReader
	logger *slog.Logger
}

// NewEntryService wires the entry read surface.
func NewEntryService(ledger EntryReader, logger *slog.Logger) *EntryService {
	return &EntryService{ledger: ledger, logger: defaultLogger(logger)}
}

// ListEntries returns the persisted entries for a period.
func (s *EntryService) ListEntries(ctx context.Context, year, month int) ([]persistence.PayrollEntry, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}

	entries, err := s.ledger.ListEntries(ctx, year, month)
	if err != nil {
		serviceLogger(ctx, s.logger, "entries", "list", "year", year, "month", month).
			Warn("entry listing failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return entries, nil
}
