package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/application"
)

type uploadService interface {
	PreviewUpload(ctx context.Context, params application.PreviewParams) (application.PreviewSession, error)
	GetPreview(ctx context.Context, token string) (application.PreviewSession, error)
	DiscardPreview(ctx context.Context, token string)
}

type commitService interface {
	Confirm(ctx context.Context, params application.ConfirmParams) (application.CommitResult, error)
}

// UploadHandler serves the preview/confirm lifecycle of payroll uploads.
type UploadHandler struct {
	uploads        uploadService
	commits        commitService
	maxUploadBytes int64
	responder      responder
	logger         *slog.Logger
}

// NewUploadHandler wires the upload endpoints. maxUploadBytes bounds request
// bodies via http.MaxBytesReader; non-positive disables the bound.
func NewUploadHandler(uploads uploadService, commits commitService, maxUploadBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploads:        uploads,
		commits:        commits,
		maxUploadBytes: maxUploadBytes,
		responder:      newResponder(logger),
		logger:         defaultLogger(logger),
	}
}

// Create stages a new preview from a multipart upload.
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.uploads == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	// Form fields are small; the workbook itself streams from the multipart
	// part without being fully buffered here.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		handlerLogger(r.Context(), h.logger, "uploads", "create").Warn("upload request without file part", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingFile)
		return
	}
	defer func() { _ = file.Close() }()

	year, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	month, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("month")))

	mode, ok := application.ParseDuplicateMode(strings.TrimSpace(r.FormValue("duplicate_mode")))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDupeMode)
		return
	}

	session, err := h.uploads.PreviewUpload(r.Context(), application.PreviewParams{
		Reader:       file,
		DeclaredSize: header.Size,
		Year:         year,
		Month:        month,
		Mode:         mode,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toPreviewResponse(session, maskRequested(r)))
}

// Get returns a staged preview for review.
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.uploads == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, ok := TokenFromContext(r.Context())
	if !ok || strings.TrimSpace(token) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidToken)
		return
	}

	session, err := h.uploads.GetPreview(r.Context(), token)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPreviewResponse(session, maskRequested(r)))
}

// Confirm persists a staged preview.
func (h *UploadHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.commits == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, ok := TokenFromContext(r.Context())
	if !ok || strings.TrimSpace(token) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidToken)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	mode, ok := application.ParseDuplicateMode(strings.TrimSpace(req.DuplicateMode))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDupeMode)
		return
	}

	result, err := h.commits.Confirm(r.Context(), application.ConfirmParams{
		Token:          token,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Mode:           mode,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCommitResponse(result))
}

// Discard drops a staged preview. Responds 204 regardless of whether the
// token still existed, so retries are harmless.
func (h *UploadHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.uploads == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, ok := TokenFromContext(r.Context())
	if !ok || strings.TrimSpace(token) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidToken)
		return
	}

	h.uploads.DiscardPreview(r.Context(), token)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// maskRequested reports whether the response should hide monetary figures.
// Masking is on unless the caller opts out with ?mask=false.
func maskRequested(r *http.Request) bool {
	return !strings.EqualFold(r.URL.Query().Get("mask"), "false")
}

type confirmRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	DuplicateMode  string `json:"duplicate_mode"`
}

type previewResponse struct {
	Token     string       `json:"token"`
	Year      int          `json:"year"`
	Month     int          `json:"month"`
	ExpiresAt string       `json:"expires_at"`
	Summary   summaryDTO   `json:"summary"`
	Records   []recordDTO  `json:"records"`
}

type summaryDTO struct {
	ValidCount   int    `json:"valid_count"`
	WarningCount int    `json:"warning_count"`
	InvalidCount int    `json:"invalid_count"`
	TotalNetPay  string `json:"total_net_pay"`
}

type recordDTO struct {
	RowIndex      int                      `json:"row_index"`
	Severity      string                   `json:"severity"`
	EmployeeCode  string                   `json:"employee_code,omitempty"`
	Name          string                   `json:"name,omitempty"`
	Department    string                   `json:"department,omitempty"`
	MatchStatus   string                   `json:"match_status"`
	MatchedBy     string                   `json:"matched_by,omitempty"`
	Amounts       amountsDTO               `json:"amounts"`
	FieldErrors   []application.FieldIssue `json:"field_errors,omitempty"`
	FieldWarnings []application.FieldIssue `json:"field_warnings,omitempty"`
	Duplicate     bool                     `json:"duplicate,omitempty"`
}

// amountsDTO renders yen figures as strings so masked and clear responses
// share one shape.
type amountsDTO struct {
	BaseSalary  string `json:"base_salary"`
	OvertimePay string `json:"overtime_pay"`
	Allowance   string `json:"allowance"`
	Deduction   string `json:"deduction"`
	NetPay      string `json:"net_pay"`
}

const maskedAmount = "***"

func toPreviewResponse(session application.PreviewSession, masked bool) previewResponse {
	records := make([]recordDTO, 0, len(session.Records))
	for _, record := range session.Records {
		records = append(records, toRecordDTO(record, masked))
	}

	summary := summaryDTO{
		ValidCount:   session.Summary.ValidCount,
		WarningCount: session.Summary.WarningCount,
		InvalidCount: session.Summary.InvalidCount,
		TotalNetPay:  renderAmount(session.Summary.TotalNetPay, masked),
	}

	return previewResponse{
		Token:     session.Token,
		Year:      session.Year,
		Month:     session.Month,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		Summary:   summary,
		Records:   records,
	}
}

func toRecordDTO(record application.ValidatedRecord, masked bool) recordDTO {
	return recordDTO{
		RowIndex:     record.RowIndex,
		Severity:     string(record.Severity()),
		EmployeeCode: record.EmployeeCode,
		Name:         record.Name,
		Department:   record.Department,
		MatchStatus:  string(record.Match.Status),
		MatchedBy:    string(record.Match.MatchedBy),
		Amounts: amountsDTO{
			BaseSalary:  renderAmount(record.Amounts.BaseSalary, masked),
			OvertimePay: renderAmount(record.Amounts.OvertimePay, masked),
			Allowance:   renderAmount(record.Amounts.Allowance, masked),
			Deduction:   renderAmount(record.Amounts.Deduction, masked),
			NetPay:      renderAmount(record.Amounts.NetPay(), masked),
		},
		FieldErrors:   record.FieldErrors,
		FieldWarnings: record.FieldWarnings,
		Duplicate:     record.Duplicate,
	}
}

func renderAmount(amount int64, masked bool) string {
	if masked {
		return maskedAmount
	}
	return strconv.FormatInt(amount, 10)
}

type commitResponse struct {
	IdempotencyKey string          `json:"idempotency_key"`
	SavedCount     int             `json:"saved_count"`
	FailedCount    int             `json:"failed_count"`
	PerRow         []rowOutcomeDTO `json:"per_row"`
}

type rowOutcomeDTO struct {
	RowIndex int    `json:"row_index"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
}

func toCommitResponse(result application.CommitResult) commitResponse {
	perRow := make([]rowOutcomeDTO, 0, len(result.PerRow))
	for _, outcome := range result.PerRow {
		perRow = append(perRow, rowOutcomeDTO{
			RowIndex: outcome.RowIndex,
			Outcome:  string(outcome.Outcome),
			Reason:   outcome.Reason,
		})
	}
	return commitResponse{
		IdempotencyKey: result.IdempotencyKey,
		SavedCount:     result.SavedCount,
		FailedCount:    result.FailedCount,
		PerRow:         perRow,
	}
}
