// Package avatar はアバター画像のSSRF安全なプロキシ取得を提供する。
// プロフィールページがユーザー入力のavatar_urlを任意オリジンへ
// 直接ホットリンクしないよう、サーバー側で画像を中継する。
package avatar

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher はアバター画像取得機能の実装。
// 取得失敗はすべてnilデータに潰す（エラーは返さない）。
// 呼び出し側はnilをプレースホルダ表示として扱う。
type Fetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// FetchImage は指定URLからアバター画像を取得する。
// SSRF検証、サイズ上限、画像Content-Typeの確認を行い、
// いずれかに失敗した場合はnilデータと空MIMEを返す。
func (f *Fetcher) FetchImage(ctx context.Context, avatarURL string) (data []byte, mimeType string) {
	if avatarURL == "" {
		return nil, ""
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(avatarURL); err != nil {
			slog.Warn("アバター取得: SSRFブロック", "url", avatarURL, "error", err)
			return nil, ""
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		slog.Warn("アバター取得: リクエスト作成失敗", "url", avatarURL, "error", err)
		return nil, ""
	}
	req.Header.Set("User-Agent", "Serif/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("アバター取得: HTTPリクエスト失敗", "url", avatarURL, "error", err)
		return nil, ""
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("アバター取得: HTTPステータス異常", "url", avatarURL, "status", resp.StatusCode)
		return nil, ""
	}

	// レスポンスボディを読み込み（サイズ上限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		slog.Warn("アバター取得: レスポンス読み取り失敗", "url", avatarURL, "error", err)
		return nil, ""
	}

	// サイズ超過チェック
	if int64(len(body)) > f.maxSize {
		slog.Warn("アバター取得: サイズ超過", "url", avatarURL, "size", len(body))
		return nil, ""
	}

	// Content-Typeを取得
	mimeType = extractMimeType(resp.Header.Get("Content-Type"))

	// 画像でない場合はnilを返す
	if !isImageMime(mimeType) {
		slog.Warn("アバター取得: 画像以外のContent-Type", "url", avatarURL, "contentType", mimeType)
		return nil, ""
	}

	return body, mimeType
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

// isImageMime はメディアタイプが画像かを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
