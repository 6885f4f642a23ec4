// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, store, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"
	ErrCodeStoreFailure     = "STORE_FAILURE"
	ErrCodeInvalidAvatarURL = "INVALID_AVATAR_URL"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Please sign in and try again.",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
// 認証済みユーザーにプロフィール行が存在しないのは想定外の状態であり、
// リトライ手段は提供しない。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Your profile could not be found.",
		Category: "store",
		Action:   "Please contact support.",
	}
}

// NewStoreFailureError はストア読み書き失敗エラーを生成する。
// reasonにはストアのエラーレスポンス由来のテキストを渡す。
func NewStoreFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreFailure,
		Message:  fmt.Sprintf("Failed to update profile: %s", reason),
		Category: "store",
		Action:   "Please try again later.",
	}
}

// NewInvalidAvatarURLError は無効なアバターURLエラーを生成する。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("Invalid avatar URL: %s", reason),
		Category: "validation",
		Action:   "Enter a URL that starts with http:// or https://.",
	}
}
