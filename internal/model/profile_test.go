package model

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

// Mergeが指定フィールドだけを変更し、updated_atを刷新することを検証
func TestMerge_ChangesOnlyNamedFields(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	confirmed := Profile{
		ID:        "user-1",
		FirstName: strPtr("Ann"),
		AvatarURL: strPtr("https://example.com/a.png"),
		Email:     strPtr("ann@example.com"),
		UpdatedAt: now.Add(-1 * time.Hour),
	}

	merged := Merge(confirmed, ProfilePartial{FirstName: strPtr("Anna")}, now)

	if merged.FirstName == nil || *merged.FirstName != "Anna" {
		t.Errorf("FirstName = %v, want Anna", merged.FirstName)
	}
	if merged.AvatarURL == nil || *merged.AvatarURL != "https://example.com/a.png" {
		t.Errorf("AvatarURL should be unchanged, got %v", merged.AvatarURL)
	}
	if merged.Email == nil || *merged.Email != "ann@example.com" {
		t.Errorf("Email should be unchanged, got %v", merged.Email)
	}
	if !merged.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", merged.UpdatedAt, now)
	}
}

// 空のpartialでもupdated_atだけは刷新されることを検証
func TestMerge_EmptyPartialRefreshesUpdatedAtOnly(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	confirmed := Profile{
		ID:        "user-1",
		FirstName: strPtr("Ann"),
		UpdatedAt: now.Add(-1 * time.Hour),
	}

	merged := Merge(confirmed, ProfilePartial{}, now)

	if merged.FirstName == nil || *merged.FirstName != "Ann" {
		t.Errorf("FirstName = %v, want Ann", merged.FirstName)
	}
	if !merged.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", merged.UpdatedAt, now)
	}
}

// Mergeの結果が元のProfileのポインタを共有しないことを検証
func TestMerge_DeepCopiesPointerFields(t *testing.T) {
	now := time.Now()
	name := "Ann"
	partial := ProfilePartial{FirstName: &name}

	merged := Merge(Profile{ID: "user-1"}, partial, now)

	name = "changed"
	if *merged.FirstName != "Ann" {
		t.Errorf("merged FirstName should not alias the partial's pointer, got %q", *merged.FirstName)
	}
}

// 部分更新型にemailフィールドが存在しないことは型定義自体が保証する。
// ここでは空判定のみ検証する。
func TestProfilePartial_IsEmpty(t *testing.T) {
	if !(ProfilePartial{}).IsEmpty() {
		t.Error("empty partial should report IsEmpty")
	}
	if (ProfilePartial{FirstName: strPtr("x")}).IsEmpty() {
		t.Error("partial with first_name should not report IsEmpty")
	}
	if (ProfilePartial{AvatarURL: strPtr("")}).IsEmpty() {
		t.Error("partial with avatar_url should not report IsEmpty")
	}
}

func TestAPIError_ErrorFormat(t *testing.T) {
	err := NewInvalidAvatarURLError("disallowed scheme: ftp")
	got := err.Error()
	want := "[INVALID_AVATAR_URL] Invalid avatar URL: disallowed scheme: ftp"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
