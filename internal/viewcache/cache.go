// Package viewcache はレンダリング済みプロフィールページのキャッシュを提供する。
// ストア更新の副作用としてユーザー単位で無効化され、
// 更新直後の再読み込みが必ず最新の値を反映するようにする。
package viewcache

import (
	"sync"
	"time"
)

// entry はキャッシュされたレンダリング結果とその格納時刻を保持する。
type entry struct {
	body     []byte
	storedAt time.Time
}

// Cache はユーザーIDをキーとするレンダリング済みページのTTLキャッシュ。
// 単一プロセス内のインメモリキャッシュであり、プロセスを跨いだ共有はしない。
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	// now はテストから時刻を差し替えるためのフック。
	now func() time.Time
}

// New は指定TTLのCacheを生成する。
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get はキャッシュされたレンダリング結果を返す。
// エントリが存在しないか期限切れの場合はnilとfalseを返す。
func (c *Cache) Get(userID string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.Invalidate(userID)
		return nil, false
	}
	return e.body, true
}

// Put はレンダリング結果を格納する。
func (c *Cache) Put(userID string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = entry{body: body, storedAt: c.now()}
}

// Invalidate は指定ユーザーのキャッシュエントリを破棄する。
// ストア更新の成功時にアクセサから呼び出される。
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
