// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tasky/internal/auth"
	"github.com/hitoshi/tasky/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "token"

// アクセスガードが返すメッセージ。クライアントはこの文言で再ログインを判定する。
const (
	msgTokenMissing   = "Not authorized, token is missing"
	msgTokenInvalid   = "Invalid token"
	msgSessionExpired = "Session expired, Login Again!"
	msgLoginAgain     = "Not authorized, Login Again!"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.TokenIssuerの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware はCookieのトークンを検証し、
// 認証済みアカウントIDをリクエストコンテキストに注入するミドルウェアを返す。
// アカウントの存在確認は行わない。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(msgTokenMissing))
				return
			}

			userID, err := verifier.Verify(cookie.Value)
			if err != nil {
				slog.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(messageForTokenError(err)))
				return
			}

			annotateUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

func messageForTokenError(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return msgSessionExpired
	case errors.Is(err, auth.ErrTokenMissingIdentity):
		return msgLoginAgain
	default:
		return msgTokenInvalid
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
