// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService はユーザーが入力する表示名をサニタイズし、
// HTMLタグやスクリプトの混入を保存前に除去する。
// bluemondayのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名サニタイズ機能のインターフェースを定義する。
// プロフィール更新ペイロードの保存前に使用される。
type NameSanitizerService interface {
	// Sanitize は表示名からHTMLタグをすべて除去し、前後の空白を取り除いて返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawName string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// 表示名は装飾を一切許可しないため、StrictPolicy（許可タグなし）を使用する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名からHTMLタグをすべて除去して返す。
func (s *nameSanitizer) Sanitize(rawName string) string {
	return strings.TrimSpace(s.policy.Sanitize(rawName))
}
