package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/persistence"
)

type entryService interface {
	ListEntries(ctx context.Context, year, month int) ([]persistence.PayrollEntry, error)
}

// EntriesHandler serves the read-back view over committed payroll entries.
type EntriesHandler struct {
	service   entryService
	responder responder
}

// NewEntriesHandler wires the entries listing endpoint.
func NewEntriesHandler(service entryService, logger *slog.Logger) *EntriesHandler {
	return &EntriesHandler{service: service, responder: newResponder(logger)}
}

// List returns the persisted entries for ?year=&month=.
func (h *EntriesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	year, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("year")))
	month, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("month")))

	entries, err := h.service.ListEntries(r.Context(), year, month)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEntriesResponse{
		Entries: toEntryDTOs(entries),
	})
}

type listEntriesResponse struct {
	Entries []entryDTO `json:"entries"`
}

type entryDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	BaseSalary  int64  `json:"base_salary"`
	OvertimePay int64  `json:"overtime_pay"`
	Allowance   int64  `json:"allowance"`
	Deduction   int64  `json:"deduction"`
	GrossPay    int64  `json:"gross_pay"`
	NetPay      int64  `json:"net_pay"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toEntryDTOs(entries []persistence.PayrollEntry) []entryDTO {
	if len(entries) == 0 {
		return nil
	}

	out := make([]entryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryDTO{
			ID:          entry.ID,
			EmployeeID:  entry.EmployeeID,
			Year:        entry.Year,
			Month:       entry.Month,
			BaseSalary:  entry.BaseSalary,
			OvertimePay: entry.OvertimePay,
			Allowance:   entry.Allowance,
			Deduction:   entry.Deduction,
			GrossPay:    entry.GrossPay(),
			NetPay:      entry.NetPay(),
			CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   entry.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
