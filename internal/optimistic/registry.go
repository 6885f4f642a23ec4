package optimistic

import (
	"sync"
	"time"

	"github.com/hitoshi/serif/internal/model"
)

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	IdleTTL         time.Duration // 無操作コントローラの保持期間
	CleanupInterval time.Duration // 掃除ループの実行間隔
}

// DefaultRegistryConfig はデフォルトのRegistry設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL:         30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Registry は認証済みユーザーごとのControllerを管理する。
// 無操作かつ購読者のいないコントローラはバックグラウンドで破棄される。
type Registry struct {
	config  RegistryConfig
	updater Updater
	metrics SettleRecorder

	mu          sync.Mutex
	controllers map[string]*Controller

	stopCh chan struct{}
}

// NewRegistry は新しいRegistryを生成する。
// バックグラウンドで無操作エントリのクリーンアップを開始する。
func NewRegistry(config RegistryConfig, updater Updater, metrics SettleRecorder) *Registry {
	r := &Registry{
		config:      config,
		updater:     updater,
		metrics:     metrics,
		controllers: make(map[string]*Controller),
		stopCh:      make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *Registry) Stop() {
	close(r.stopCh)
}

// GetOrCreate は指定ユーザーのControllerを取得する。
// 存在しない場合はconfirmedを初期確定値としてControllerを生成する。
// 既存のコントローラが見つかった場合、confirmedは無視される
// （飛行中の楽観的状態を読み取り直後の確定値で潰さないため）。
func (r *Registry) GetOrCreate(userID string, confirmed model.Profile) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[userID]; ok {
		return c
	}

	c := NewController(userID, confirmed, r.updater, r.metrics)
	r.controllers[userID] = c
	return c
}

// Get は指定ユーザーのControllerを返す。存在しない場合はnilを返す。
func (r *Registry) Get(userID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.controllers[userID]
}

// Len は現在管理されているコントローラ数を返す。テストおよびメトリクス用。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// cleanupLoop はバックグラウンドで無操作エントリを定期的にクリーンアップする。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup はIdleTTLを超えて無操作かつ購読者のいないコントローラを削除する。
// 飛行中の更新を持つコントローラは削除しない。
func (r *Registry) cleanup() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, c := range r.controllers {
		if c.SubscriberCount() > 0 {
			continue
		}
		snap := c.Snapshot()
		if snap.InFlight > 0 {
			continue
		}
		if now.Sub(c.IdleSince()) > r.config.IdleTTL {
			delete(r.controllers, userID)
		}
	}
}
