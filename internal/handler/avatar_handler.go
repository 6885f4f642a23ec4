package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/optimistic"
)

// placeholderAvatar はアバターが未設定または取得失敗時に返すSVG。
const placeholderAvatar = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 96 96"><rect width="96" height="96" fill="#e2e8f0"/><circle cx="48" cy="36" r="16" fill="#94a3b8"/><path d="M16 88c0-18 14-28 32-28s32 10 32 28" fill="#94a3b8"/></svg>`

// ImageFetcher はアバター画像取得のインターフェース。
// avatar.Fetcherを抽象化してテスタビリティを向上させる。
type ImageFetcher interface {
	FetchImage(ctx context.Context, avatarURL string) (data []byte, mimeType string)
}

// AvatarHandler は現在のユーザーのアバター画像をSSRFガード経由で中継する。
// プロフィールページが任意オリジンへ直接ホットリンクしないようにする。
type AvatarHandler struct {
	profiles ProfileFetcher
	registry *optimistic.Registry
	fetcher  ImageFetcher
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(profiles ProfileFetcher, registry *optimistic.Registry, fetcher ImageFetcher) *AvatarHandler {
	return &AvatarHandler{
		profiles: profiles,
		registry: registry,
		fetcher:  fetcher,
	}
}

// Serve は現在のユーザーのアバター画像を返す。
// GET /avatar
// 表示値（楽観的表示を含む）のavatar_urlを使用し、
// 未設定・取得失敗時はプレースホルダSVGを返す。
func (h *AvatarHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	avatarURL := h.displayedAvatarURL(r, userID)
	if avatarURL == "" {
		writePlaceholder(w)
		return
	}

	data, mimeType := h.fetcher.FetchImage(r.Context(), avatarURL)
	if data == nil {
		writePlaceholder(w)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Write(data)
}

// displayedAvatarURL は表示中のavatar_urlを解決する。
// コントローラがあればその表示値、なければストアの確定値を使う。
func (h *AvatarHandler) displayedAvatarURL(r *http.Request, userID string) string {
	if controller := h.registry.Get(userID); controller != nil {
		snap := controller.Snapshot()
		if snap.Profile.AvatarURL != nil {
			return *snap.Profile.AvatarURL
		}
		return ""
	}

	profile := h.profiles.Fetch(r.Context(), userID)
	if profile == nil || profile.AvatarURL == nil {
		return ""
	}
	return *profile.AvatarURL
}

// writePlaceholder はプレースホルダSVGを書き込む。
func writePlaceholder(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Write([]byte(placeholderAvatar))
}
