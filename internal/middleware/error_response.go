package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/tasky/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Code       string   `json:"code"`
	Errors     []string `json:"errors,omitempty"`
	RetryAfter int      `json:"retryAfter,omitempty"`
}

// StatusForError はエラーコードに対応するHTTPステータスを返す。
// 未知のコードは500とする。
func StatusForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation,
		model.ErrCodeAllFieldsRequired,
		model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidID,
		model.ErrCodeInvalidCode,
		model.ErrCodeOTPExpired,
		model.ErrCodeInvalidPet:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredential:
		return http.StatusUnauthorized
	case model.ErrCodeUserNotFound, model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyExists, model.ErrCodeAlreadyVerified:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success:    false,
		Message:    apiErr.Message,
		Code:       apiErr.Code,
		Errors:     apiErr.Errors,
		RetryAfter: apiErr.RetryAfter,
	})
}

// WriteAPIError はエラーコードからステータスを決定して書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
