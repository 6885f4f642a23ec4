package blog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

// Post はランディングページに表示するブログ記事を表す。
type Post struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// RefreshRecorder はフィード更新結果のメトリクス記録インターフェース。
type RefreshRecorder interface {
	RecordBlogRefresh(success bool)
}

// ServiceConfig はブログフィードサービスの設定。
type ServiceConfig struct {
	BlogURL     string        // ブログトップページまたはフィードのURL。空の場合セクションは非表示
	MaxItems    int           // 表示する記事の最大件数
	Timeout     time.Duration // フェッチタイムアウト
	MaxBodySize int64         // レスポンスボディの最大サイズ
}

// Service はブログフィードの取得・パース・キャッシュを行う。
// ランディングページのリクエストパスでは外部フェッチを行わず、
// バックグラウンドのリフレッシュループが埋めたキャッシュのみを読む。
type Service struct {
	config    ServiceConfig
	ssrfGuard SSRFValidator
	metrics   RefreshRecorder

	mu          sync.RWMutex
	posts       []Post
	refreshedAt time.Time
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(config ServiceConfig, ssrfGuard SSRFValidator, metrics RefreshRecorder) *Service {
	return &Service{
		config:    config,
		ssrfGuard: ssrfGuard,
		metrics:   metrics,
	}
}

// Latest はキャッシュ済みの最新記事を返す。
// まだ一度も取得に成功していない場合は空スライスを返し、
// ランディングページはセクションごと非表示にする。
func (s *Service) Latest() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]Post, len(s.posts))
	copy(posts, s.posts)
	return posts
}

// Refresh はブログフィードを取得してキャッシュを更新する。
// BlogURLがフィードを直接指す場合はそのままパースし、
// HTMLページの場合はheadタグからフィードURLを自動検出して取得する。
// 失敗時は既存キャッシュを保持したままエラーを返す。
func (s *Service) Refresh(ctx context.Context) error {
	if s.config.BlogURL == "" {
		return nil
	}

	posts, err := s.fetch(ctx)
	if err != nil {
		s.recordRefresh(false)
		return err
	}

	s.mu.Lock()
	s.posts = posts
	s.refreshedAt = time.Now()
	s.mu.Unlock()

	s.recordRefresh(true)
	return nil
}

// StartRefreshLoop はバックグラウンドで定期的にRefreshを実行する。
// 起動直後に1回実行し、以降はinterval間隔で繰り返す。
// ctxのキャンセルで停止する。ブロッキングするためgoで起動すること。
func (s *Service) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if s.config.BlogURL == "" {
		return
	}

	if err := s.Refresh(ctx); err != nil {
		slog.Warn("ブログフィードの初回取得に失敗しました",
			slog.String("blog_url", s.config.BlogURL),
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				slog.Warn("ブログフィードの更新に失敗しました",
					slog.String("blog_url", s.config.BlogURL),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// fetch はBlogURLからフィードを解決して最新記事を取得する。
func (s *Service) fetch(ctx context.Context) ([]Post, error) {
	contentType, body, err := s.get(ctx, s.config.BlogURL)
	if err != nil {
		return nil, err
	}

	// フィードが直接設定されているケース
	if isDirectFeed(contentType, body) {
		return s.parse(body)
	}

	// HTMLページからフィードURLを自動検出
	feedURL := discoverFeedURL(body, s.config.BlogURL)
	if feedURL == "" {
		return nil, fmt.Errorf("no feed link found at %s", s.config.BlogURL)
	}

	_, feedBody, err := s.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return s.parse(feedBody)
}

// get はSSRF安全なクライアントで指定URLを取得する。
func (s *Service) get(ctx context.Context, rawURL string) (contentType string, body []byte, err error) {
	if s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
			return "", nil, fmt.Errorf("URL validation failed: %w", err)
		}
	}

	client := s.httpClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Serif/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.Header.Get("Content-Type"), body, nil
}

// parse はフィードボディをgofeedでパースし、最新MaxItems件のPostに変換する。
func (s *Service) parse(body []byte) ([]Post, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	max := s.config.MaxItems
	if max <= 0 {
		max = 3
	}

	posts := make([]Post, 0, max)
	for _, item := range feed.Items {
		if len(posts) >= max {
			break
		}
		post := Post{
			Title: item.Title,
			Link:  item.Link,
		}
		if item.PublishedParsed != nil {
			post.PublishedAt = *item.PublishedParsed
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// httpClient はHTTPクライアントを取得する。
func (s *Service) httpClient() *http.Client {
	if s.ssrfGuard != nil {
		return s.ssrfGuard.NewSafeClient(s.config.Timeout, s.config.MaxBodySize)
	}
	return &http.Client{Timeout: s.config.Timeout}
}

func (s *Service) recordRefresh(success bool) {
	if s.metrics != nil {
		s.metrics.RecordBlogRefresh(success)
	}
}
