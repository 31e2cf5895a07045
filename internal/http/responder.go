package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nukk-pain/smpain-HR-sub013/internal/application"
	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
)

var (
	errBadRequestBody  = errors.New("無効なリクエスト形式です。")
	errMissingFile     = errors.New("アップロードファイルを指定してください。")
	errInvalidToken    = errors.New("無効なプレビュートークンです。")
	errInvalidDupeMode = errors.New("duplicate_mode は reject / skip / overwrite のいずれかを指定してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			Message: "指定されたプレビューが見つからないか、有効期限が切れています。",
		})
	case errors.Is(err, application.ErrCapacityExceeded):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "STAGING_CAPACITY_EXCEEDED",
			Message:   "プレビュー保管領域が一杯です。しばらく待ってから再試行してください。",
		})
	case errors.Is(err, application.ErrConfirmInProgress):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CONFIRM_IN_PROGRESS",
			Message:   "このプレビューは現在確定処理中です。",
		})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "COMMIT_CONFLICT",
			Message:   "既存の給与データと競合しています。重複時の動作を指定して再試行してください。",
		})
	case errors.Is(err, application.ErrPersistenceFailure):
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{
			ErrorCode: "PERSISTENCE_FAILURE",
			Message:   "保存処理に失敗しました。プレビューは保持されています。再試行してください。",
		})
	case errors.Is(err, spreadsheet.ErrTooLarge):
		r.writeJSON(ctx, w, http.StatusRequestEntityTooLarge, errorResponse{
			Message: "ファイルサイズが上限を超えています。",
		})
	case errors.Is(err, spreadsheet.ErrParse):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Message: "ファイルを読み取れませんでした。Excel 形式 (xlsx) のファイルを指定してください。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusRequestEntityTooLarge:
		return "ファイルサイズが上限を超えています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "year must be between 2000 and 2100":
		return "対象年は 2000〜2100 の範囲で指定してください。"
	case "month must be between 1 and 12":
		return "対象月は 1〜12 の範囲で指定してください。"
	case "token is required":
		return "プレビュートークンは必須です。"
	case "idempotency key is required":
		return "冪等性キーは必須です。"
	case "must be one of reject, skip, overwrite":
		return "reject / skip / overwrite のいずれかを指定してください。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
