// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はユーザープロフィールを表す。
// first_name と avatar_url のみがこのサブシステムから編集可能で、
// email は外部IdP由来の読み取り専用フィールドとして扱う。
// id は作成時に採番され、以後変更されない。
type Profile struct {
	ID        string
	FirstName *string // 表示名（任意）
	AvatarURL *string // アバター画像URL（任意）
	Email     *string // 外部IdP由来。更新経路では変更しない
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfilePartial はプロフィールの部分更新ペイロードを表す。
// 編集可能なフィールドのみを持つ固定シェイプの型であり、
// nilのフィールドは「変更しない」を意味する。
// email を構造的に持たないことで、更新経路からの email 変更を
// 型レベルで不可能にしている。
type ProfilePartial struct {
	FirstName *string
	AvatarURL *string
}

// IsEmpty は部分更新ペイロードが空（全フィールドnil）かを返す。
func (p ProfilePartial) IsEmpty() bool {
	return p.FirstName == nil && p.AvatarURL == nil
}

// Merge は確定済みプロフィールに部分更新を重ねた新しいProfileを返す。
// partialに含まれる（非nilの）フィールドのみを上書きし、
// id、email、created_at は変更しない。updated_at はnowで更新する。
// 楽観的表示値の導出と、ストア更新後の確定値の合成の両方で使用する。
func Merge(confirmed Profile, partial ProfilePartial, now time.Time) Profile {
	merged := confirmed

	if partial.FirstName != nil {
		v := *partial.FirstName
		merged.FirstName = &v
	}
	if partial.AvatarURL != nil {
		v := *partial.AvatarURL
		merged.AvatarURL = &v
	}

	merged.UpdatedAt = now
	return merged
}
