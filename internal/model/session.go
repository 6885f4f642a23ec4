// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は外部IdPとの紐付け情報を表す。
// プロフィールの作成はこのサブシステムの外側（初回ログイン時）で
// トリガーされるため、IdP側のユーザーIDとの対応をここで保持する。
type Identity struct {
	ID             string
	ProfileID      string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	ProfileID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
