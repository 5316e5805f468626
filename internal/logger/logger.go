// Package logger はslogによるJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redacted はマスク後の値。
const redacted = "[REDACTED]"

// sensitiveKeys はログに値を残さない属性キー。
// パスワード・OTP・セッショントークンが誤って出力されるのを防ぐ。
var sensitiveKeys = map[string]struct{}{
	"password":     {},
	"new_password": {},
	"otp":          {},
	"token":        {},
	"jwt_secret":   {},
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// appEnvが"production"以外の場合はDebugレベルまで出力する。
func Setup(w io.Writer, appEnv string) *slog.Logger {
	level := slog.LevelDebug
	if appEnv == "production" {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSensitive,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, appEnv string) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, appEnv))
}

func redactSensitive(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
