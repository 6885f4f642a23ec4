// Package optimistic は楽観的編集コントローラを提供する。
// 送信された編集を確定値に重ねて即座に表示値へ反映し、
// ストアへの書き込みは非同期にセトルさせる明示的な状態コンテナ。
package optimistic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/serif/internal/model"
)

// Phase はコントローラの状態を表す。
type Phase string

const (
	// PhaseConfirmed は表示値がストア確定値から導出されている状態。
	PhaseConfirmed Phase = "confirmed"
	// PhaseDisplayingOptimistic は未確定の編集が表示値に重なっている状態。
	PhaseDisplayingOptimistic Phase = "displaying_optimistic"
)

// Snapshot はコントローラ状態のある時点のコピーを表す。
// 購読者への通知とJSON API応答の両方に使用する。
type Snapshot struct {
	Profile   model.Profile
	Phase     Phase
	InFlight  int    // 未セトルの更新リクエスト数
	LastError string // 直近の失敗メッセージ。次の送信まで保持する
}

// Updater はストアへの書き込みインターフェース。
// profile.Serviceの部分集合として定義する。
type Updater interface {
	Update(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string)
}

// SettleRecorder はセトルのレイテンシ記録インターフェース。
type SettleRecorder interface {
	RecordSettleLatency(duration time.Duration)
}

// subscriberBuffer は購読チャネルのバッファサイズ。
// 溢れた通知はドロップされる（購読側は最新のSnapshot()で追いつける）。
const subscriberBuffer = 16

// Controller は単一ユーザーのプロフィール編集状態を保持する状態コンテナ。
//
// 状態遷移:
//
//	Confirmed → (Submit) → DisplayingOptimistic → (セトル) → Confirmed
//
// セトルは成功・失敗を問わず表示値を確定値へ昇格させる（ロールバックなし）。
// 送信が重なった場合は後続の編集が未確定の表示値にそのまま重なり、
// 相互排他・キャンセル・応答順序の保証は行わない。
type Controller struct {
	userID  string
	updater Updater
	metrics SettleRecorder

	mu        sync.Mutex
	confirmed model.Profile
	displayed model.Profile
	inFlight  int
	lastError string
	subs      map[chan Snapshot]struct{}
	touchedAt time.Time

	// now はテストから時刻を差し替えるためのフック。
	now func() time.Time
}

// NewController は確定値confirmedで初期化されたControllerを生成する。
// metricsはnilを許容する。
func NewController(userID string, confirmed model.Profile, updater Updater, metrics SettleRecorder) *Controller {
	return &Controller{
		userID:    userID,
		updater:   updater,
		metrics:   metrics,
		confirmed: confirmed,
		displayed: confirmed,
		subs:      make(map[chan Snapshot]struct{}),
		touchedAt: time.Now(),
		now:       time.Now,
	}
}

// Snapshot は現在の表示値と状態のコピーを返す。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Submit は部分更新を送信する。
// 表示値への楽観的マージと購読者への通知を同期的に行ってから、
// ストアへの書き込みをゴルーチンで開始する。UIはネットワーク遅延を待たない。
//
// 書き込みはリクエストコンテキストに紐付けない。画面遷移や後続の編集で
// 飛行中の更新がキャンセルされることはない。
func (c *Controller) Submit(partial model.ProfilePartial) {
	c.mu.Lock()
	// 前回の楽観的表示値（未確定でもよい）の上に重ねる
	c.displayed = model.Merge(c.displayed, partial, c.now())
	c.inFlight++
	c.lastError = ""
	c.touchedAt = c.now()
	c.notifyLocked()
	c.mu.Unlock()

	go c.settle(partial)
}

// settle はストア書き込みを実行し、結果に応じて状態を確定させる。
// 成功・失敗のいずれでも表示値を確定値へ昇格させる（ロールバックなし）。
// 失敗はログと状態スナップショットのLastErrorにのみ現れる。
func (c *Controller) settle(partial model.ProfilePartial) {
	start := c.now()
	ok, message := c.updater.Update(context.Background(), c.userID, partial)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight--
	c.confirmed = c.displayed
	if !ok {
		c.lastError = message
		slog.Error("楽観的更新のセトルに失敗しました（表示値は維持されます）",
			slog.String("user_id", c.userID),
			slog.String("error", message),
		)
	}
	c.touchedAt = c.now()
	c.notifyLocked()

	if c.metrics != nil {
		c.metrics.RecordSettleLatency(c.now().Sub(start))
	}
}

// Subscribe は状態遷移ごとにSnapshotを受信するチャネルを登録する。
// 返されるcancelを呼ぶと購読が解除されチャネルがクローズされる。
// 登録直後に現在のSnapshotが1件送信される。
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount は現在の購読者数を返す。テストおよびレジストリの掃除判定用。
func (c *Controller) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// IdleSince は最後に状態が変化した時刻を返す。
func (c *Controller) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touchedAt
}

// snapshotLocked は呼び出し元がロックを保持している前提でSnapshotを構築する。
func (c *Controller) snapshotLocked() Snapshot {
	phase := PhaseConfirmed
	if c.inFlight > 0 {
		phase = PhaseDisplayingOptimistic
	}
	return Snapshot{
		Profile:   c.displayed,
		Phase:     phase,
		InFlight:  c.inFlight,
		LastError: c.lastError,
	}
}

// notifyLocked は全購読者に現在のSnapshotを配信する。
// チャネルが満杯の購読者への通知はドロップする（ブロックしない）。
func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			slog.Warn("状態通知をドロップしました（購読チャネル満杯）",
				slog.String("user_id", c.userID),
			)
		}
	}
}
