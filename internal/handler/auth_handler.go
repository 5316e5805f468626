// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/tasky/internal/auth"
	"github.com/hitoshi/tasky/internal/metrics"
	"github.com/hitoshi/tasky/internal/middleware"
	"github.com/hitoshi/tasky/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// OTPServiceInterface はOTP操作に必要なサービスインターフェース。
type OTPServiceInterface interface {
	IssueVerification(ctx context.Context, accountID string) error
	ConsumeVerification(ctx context.Context, accountID, code string) error
	IssueReset(ctx context.Context, email string) error
	ConsumeReset(ctx context.Context, email, code, newPassword string) error
}

// AuthEventRecorder は認証イベントを記録する。metrics.Collectorが満たす。
type AuthEventRecorder interface {
	RecordAuthEvent(event string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool // trueの場合Secure属性とSameSite=Strictを付与する
	SessionMaxAge int  // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・ログイン・OTP関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	otp      OTPServiceInterface
	recorder AuthEventRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, otp OTPServiceInterface, recorder AuthEventRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		otp:      otp,
		recorder: recorder,
		config:   config,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

type sendResetOTPRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// Register はアカウントを登録し、セッションCookieを設定する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.Token)
	h.record(metrics.EventRegister)
	writeMessage(w, "User registered successfully")
}

// Login は認証情報を照合し、セッションCookieを設定する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == model.ErrCodeInvalidCredential || apiErr.Code == model.ErrCodeUserNotFound) {
			h.record(metrics.EventLoginFailed)
		}
		handleServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.Token)
	h.record(metrics.EventLogin)
	writeMessage(w, "User logged in successfully")
}

// Logout はセッションCookieを削除する。トークン自体は失効させない。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeMessage(w, "User logged out successfully")
}

// SendVerificationOTP はメール検証用OTPを発行する。
// POST /api/auth/send-verification-otp
func (h *AuthHandler) SendVerificationOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.otp.IssueVerification(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeMessage(w, "Verification OTP sent successfully")
}

// VerifyEmail はOTPを照合してアカウントを検証済みにする。
// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.otp.ConsumeVerification(r.Context(), userID, req.OTP); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.record(metrics.EventEmailVerified)
	writeMessage(w, "Email verified successfully")
}

// IsAuthenticated は認証ミドルウェアを通過したことを返す。
// GET /api/auth/is-authenticated
func (h *AuthHandler) IsAuthenticated(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	writeMessage(w, "User is authenticated")
}

// SendResetOTP はパスワードリセット用OTPを発行する。
// POST /api/auth/send-reset-password-otp
func (h *AuthHandler) SendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req sendResetOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.otp.IssueReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeMessage(w, "Reset password OTP sent successfully")
}

// ResetPassword はOTPを照合してパスワードを置き換える。
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.otp.ConsumeReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.record(metrics.EventPasswordReset)
	writeMessage(w, "Password reset successfully")
}

func (h *AuthHandler) record(event string) {
	if h.recorder != nil {
		h.recorder.RecordAuthEvent(event)
	}
}

// setSessionCookie はセッショントークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, h.sessionCookie(token, h.config.SessionMaxAge))
}

// clearSessionCookie は設定時と同じ属性でCookieを失効させる。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.sessionCookie("", -1))
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.config.CookieSecure {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: sameSite,
	}
}
