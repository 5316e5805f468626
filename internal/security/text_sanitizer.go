// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はタスクの自由入力テキストからHTMLを除去し、
// クライアントでの描画時にXSSの起点とならないようにする。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエスケープ済みマークアップを展開しながら除去する最大回数。
const maxSanitizePasses = 3

// TextSanitizer はプレーンテキスト化のインターフェース。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// "&"や"<"などの通常文字はエンティティのまま残さない。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(text string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizer実装。
// Policyはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エンティティを通常文字に戻す。
// "&lt;script&gt;"のように二重にエスケープされたマークアップは
// 展開後に再度除去されるため、結果にタグが残ることはない。
func (s *textSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}

	current := text
	for i := 0; i < maxSanitizePasses; i++ {
		stripped := s.policy.Sanitize(current)
		plain := html.UnescapeString(stripped)
		if plain == current {
			return plain
		}
		current = plain
	}
	// 収束しない入力はエスケープされた安全な形で返す
	return s.policy.Sanitize(current)
}
