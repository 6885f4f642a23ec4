package optimistic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/serif/internal/model"
)

// --- モック定義 ---

// mockUpdater はUpdaterのモック実装。
// updateFnを差し替えることでセトルのタイミングと結果を制御する。
type mockUpdater struct {
	mu      sync.Mutex
	calls   []model.ProfilePartial
	updateFn func(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string)
}

func (m *mockUpdater) Update(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
	m.mu.Lock()
	m.calls = append(m.calls, partial)
	fn := m.updateFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID, partial)
	}
	return true, ""
}

func (m *mockUpdater) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func strPtr(s string) *string { return &s }

func profileWithName(name string) model.Profile {
	return model.Profile{
		ID:        "user-1",
		FirstName: strPtr(name),
		Email:     strPtr("ann@example.com"),
	}
}

// receiveSnapshot はタイムアウト付きでスナップショットを受信する。
func receiveSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

// --- テスト ---

// Submit直後に表示値へ楽観的に反映され、ストア書き込みを待たないことを検証
func TestController_Submit_DisplaysOptimisticallyBeforeSettle(t *testing.T) {
	release := make(chan struct{})
	updater := &mockUpdater{
		updateFn: func(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
			<-release // セトルを保留
			return true, ""
		},
	}

	c := NewController("user-1", profileWithName("Ann"), updater, nil)
	snapshots, cancel := c.Subscribe()
	defer cancel()
	receiveSnapshot(t, snapshots) // 購読直後の初期スナップショット

	c.Submit(model.ProfilePartial{FirstName: strPtr("Anna")})

	snap := receiveSnapshot(t, snapshots)
	if snap.Phase != PhaseDisplayingOptimistic {
		t.Errorf("Phase = %q, want %q", snap.Phase, PhaseDisplayingOptimistic)
	}
	if snap.InFlight != 1 {
		t.Errorf("InFlight = %d, want 1", snap.InFlight)
	}
	if snap.Profile.FirstName == nil || *snap.Profile.FirstName != "Anna" {
		t.Errorf("displayed FirstName = %v, want Anna", snap.Profile.FirstName)
	}

	close(release)

	settled := receiveSnapshot(t, snapshots)
	if settled.Phase != PhaseConfirmed {
		t.Errorf("settled Phase = %q, want %q", settled.Phase, PhaseConfirmed)
	}
	if settled.LastError != "" {
		t.Errorf("LastError = %q, want empty", settled.LastError)
	}
}

// セトル失敗でも表示値が維持される（ロールバックしない）ことを検証
func TestController_SettleFailure_KeepsOptimisticValue(t *testing.T) {
	updater := &mockUpdater{
		updateFn: func(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
			return false, "store unavailable"
		},
	}

	c := NewController("user-1", profileWithName("Ann"), updater, nil)
	snapshots, cancel := c.Subscribe()
	defer cancel()
	receiveSnapshot(t, snapshots)

	c.Submit(model.ProfilePartial{FirstName: strPtr("Anna")})
	receiveSnapshot(t, snapshots) // 楽観的反映

	settled := receiveSnapshot(t, snapshots)
	if settled.Phase != PhaseConfirmed {
		t.Errorf("Phase = %q, want %q", settled.Phase, PhaseConfirmed)
	}
	// 失敗してもAnnには戻らない
	if settled.Profile.FirstName == nil || *settled.Profile.FirstName != "Anna" {
		t.Errorf("FirstName after failed settle = %v, want Anna", settled.Profile.FirstName)
	}
	if settled.LastError != "store unavailable" {
		t.Errorf("LastError = %q, want %q", settled.LastError, "store unavailable")
	}
}

// 次のSubmitで前回のエラーメッセージがクリアされることを検証
func TestController_Submit_ClearsPreviousError(t *testing.T) {
	failFirst := true
	updater := &mockUpdater{}
	updater.updateFn = func(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
		if failFirst {
			failFirst = false
			return false, "boom"
		}
		return true, ""
	}

	c := NewController("user-1", profileWithName("Ann"), updater, nil)
	snapshots, cancel := c.Subscribe()
	defer cancel()
	receiveSnapshot(t, snapshots)

	c.Submit(model.ProfilePartial{FirstName: strPtr("Anna")})
	receiveSnapshot(t, snapshots) // 楽観的反映
	failed := receiveSnapshot(t, snapshots)
	if failed.LastError != "boom" {
		t.Fatalf("LastError = %q, want boom", failed.LastError)
	}

	c.Submit(model.ProfilePartial{FirstName: strPtr("Anne")})
	second := receiveSnapshot(t, snapshots)
	if second.LastError != "" {
		t.Errorf("LastError after new submit = %q, want empty", second.LastError)
	}
}

// 重なった送信が表示値に順に重なることを検証。
// 完了順序は保証しない（逆順の完了も許容される）ため、
// ここでは最終的な表示値とInFlightの収束のみを確認する。
func TestController_OverlappingSubmits_OverlayOnDisplayedValue(t *testing.T) {
	releaseFirst := make(chan struct{})
	releaseSecond := make(chan struct{})
	updater := &mockUpdater{}
	updater.updateFn = func(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
		if partial.FirstName != nil && *partial.FirstName == "Anna" {
			<-releaseFirst
		} else {
			<-releaseSecond
		}
		return true, ""
	}

	c := NewController("user-1", profileWithName("Ann"), updater, nil)
	snapshots, cancel := c.Subscribe()
	defer cancel()
	receiveSnapshot(t, snapshots)

	c.Submit(model.ProfilePartial{FirstName: strPtr("Anna")})
	first := receiveSnapshot(t, snapshots)
	if *first.Profile.FirstName != "Anna" {
		t.Fatalf("FirstName = %q, want Anna", *first.Profile.FirstName)
	}

	c.Submit(model.ProfilePartial{AvatarURL: strPtr("https://example.com/new.png")})
	second := receiveSnapshot(t, snapshots)
	// 2回目の編集は未確定の表示値（Anna）の上に重なる
	if *second.Profile.FirstName != "Anna" {
		t.Errorf("FirstName = %q, want Anna", *second.Profile.FirstName)
	}
	if second.Profile.AvatarURL == nil || *second.Profile.AvatarURL != "https://example.com/new.png" {
		t.Errorf("AvatarURL = %v, want new URL", second.Profile.AvatarURL)
	}
	if second.InFlight != 2 {
		t.Errorf("InFlight = %d, want 2", second.InFlight)
	}

	// 逆順で完了させる
	close(releaseSecond)
	receiveSnapshot(t, snapshots)
	close(releaseFirst)
	final := receiveSnapshot(t, snapshots)

	if final.Phase != PhaseConfirmed {
		t.Errorf("final Phase = %q, want %q", final.Phase, PhaseConfirmed)
	}
	if final.InFlight != 0 {
		t.Errorf("final InFlight = %d, want 0", final.InFlight)
	}
	if *final.Profile.FirstName != "Anna" {
		t.Errorf("final FirstName = %q, want Anna", *final.Profile.FirstName)
	}
	if final.Profile.AvatarURL == nil || *final.Profile.AvatarURL != "https://example.com/new.png" {
		t.Errorf("final AvatarURL = %v, want new URL", final.Profile.AvatarURL)
	}

	if updater.callCount() != 2 {
		t.Errorf("update calls = %d, want 2", updater.callCount())
	}
}

// 購読解除後にチャネルがクローズされることを検証
func TestController_Subscribe_CancelClosesChannel(t *testing.T) {
	c := NewController("user-1", profileWithName("Ann"), &mockUpdater{}, nil)

	snapshots, cancel := c.Subscribe()
	receiveSnapshot(t, snapshots)

	if c.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", c.SubscriberCount())
	}

	cancel()

	if _, ok := <-snapshots; ok {
		t.Error("channel should be closed after cancel")
	}
	if c.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", c.SubscriberCount())
	}

	// 二重cancelは安全
	cancel()
}

// Snapshotが内部状態のコピーを返すことを検証
func TestController_Snapshot_InitialState(t *testing.T) {
	c := NewController("user-1", profileWithName("Ann"), &mockUpdater{}, nil)

	snap := c.Snapshot()
	if snap.Phase != PhaseConfirmed {
		t.Errorf("Phase = %q, want %q", snap.Phase, PhaseConfirmed)
	}
	if snap.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", snap.InFlight)
	}
	if *snap.Profile.FirstName != "Ann" {
		t.Errorf("FirstName = %q, want Ann", *snap.Profile.FirstName)
	}
}
