// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントはsuccess:falseとmessageで分岐するため、Messageはそのまま表示可能な文言とする。
type APIError struct {
	Code       string   // エラーコード
	Message    string   // エラーメッセージ
	Errors     []string // フィールド単位の検証エラー（検証エラー時のみ）
	RetryAfter int      // 再試行までの秒数（レート制限時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeAllFieldsRequired = "ALL_FIELDS_REQUIRED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidID         = "INVALID_ID"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeTaskNotFound      = "TASK_NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeAlreadyVerified   = "ALREADY_VERIFIED"
	ErrCodeInvalidCode       = "INVALID_CODE"
	ErrCodeOTPExpired        = "OTP_EXPIRED"
	ErrCodeInvalidPet        = "INVALID_PET"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError はフィールド単位の検証エラーを生成する。
func NewValidationError(errs []string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: "Validation errors",
		Errors:  errs,
	}
}

// NewAllFieldsRequiredError は必須項目不足エラーを生成する。
func NewAllFieldsRequiredError() *APIError {
	return &APIError{
		Code:    ErrCodeAllFieldsRequired,
		Message: "All fields are required",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidRequest,
		Message: "Invalid request body",
	}
}

// NewInvalidTaskIDError はタスクID形式不正エラーを生成する。
func NewInvalidTaskIDError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidID,
		Message: "Invalid task ID format",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
// messageはクライアントがリダイレクト判定に使うため原因ごとに変える。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewInvalidCredentialError はパスワード不一致エラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidCredential,
		Message: "Invalid password",
	}
}

// NewUserNotFoundError はアカウントが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeUserNotFound,
		Message: "User not found",
	}
}

// NewTaskNotFoundError はタスクが見つからない場合のエラーを生成する。
// 他アカウントのタスクに対しても同一のエラーを返す。
func NewTaskNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeTaskNotFound,
		Message: "Task not found",
	}
}

// NewAlreadyExistsError は登録済みメールアドレスでの登録エラーを生成する。
func NewAlreadyExistsError() *APIError {
	return &APIError{
		Code:    ErrCodeAlreadyExists,
		Message: "User already exists",
	}
}

// NewAlreadyVerifiedError は検証済みアカウントへのOTP発行エラーを生成する。
func NewAlreadyVerifiedError() *APIError {
	return &APIError{
		Code:    ErrCodeAlreadyVerified,
		Message: "Account already verified",
	}
}

// NewInvalidCodeError はOTP不一致エラーを生成する。
func NewInvalidCodeError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidCode,
		Message: "Invalid OTP",
	}
}

// NewOTPExpiredError はOTP期限切れエラーを生成する。
func NewOTPExpiredError() *APIError {
	return &APIError{
		Code:    ErrCodeOTPExpired,
		Message: "OTP has expired",
	}
}

// NewInvalidPetError は選択できないコンパニオンが指定された場合のエラーを生成する。
func NewInvalidPetError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidPet,
		Message: "Invalid pet",
	}
}

// NewRateLimitedError はレート制限エラーを生成する。
func NewRateLimitedError(message string, retryAfter int) *APIError {
	return &APIError{
		Code:       ErrCodeRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
	}
}
