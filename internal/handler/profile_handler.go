package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/model"
	"github.com/hitoshi/serif/internal/optimistic"
	"github.com/hitoshi/serif/internal/viewcache"
)

// ProfileFetcher はプロフィール取得のインターフェース。
// profile.Serviceの部分集合として定義する。
type ProfileFetcher interface {
	Fetch(ctx context.Context, userID string) *model.Profile
}

// ProfileHandler はプロフィール編集ページのHTTPハンドラー。
// 表示は楽観的編集コントローラのスナップショットから行い、
// フォームPOSTはコントローラへの送信とリダイレクトのみ行う。
type ProfileHandler struct {
	renderer *Renderer
	profiles ProfileFetcher
	registry *optimistic.Registry
	views    *viewcache.Cache
}

// NewProfileHandler はProfileHandlerを生成する。viewsはnilを許容する。
func NewProfileHandler(renderer *Renderer, profiles ProfileFetcher, registry *optimistic.Registry, views *viewcache.Cache) *ProfileHandler {
	return &ProfileHandler{
		renderer: renderer,
		profiles: profiles,
		registry: registry,
		views:    views,
	}
}

// profilePageData はプロフィール編集ページのテンプレートデータ。
type profilePageData struct {
	Title     string
	FirstName string
	AvatarURL string
	Email     string
	LastError string
	Saved     bool
	CSRFToken string
}

// Show はプロフィール編集ページを返す。
// GET /profile
// 取得失敗（不在・ストア障害とも）は静的な「Profile Not Found」表示になる。
// 確定状態かつバナー表示のないレンダリング結果のみビューキャッシュに載せる。
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	saved := r.URL.Query().Get("saved") == "1"

	// コントローラが未生成ならキャッシュ済みの確定表示を返せる。
	// コントローラが居る間は楽観的表示があり得るため都度レンダリングする
	controller := h.registry.Get(userID)
	if controller == nil {
		if !saved && h.views != nil {
			if body, ok := h.views.Get(userID); ok {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Write(body)
				return
			}
		}

		profile := h.profiles.Fetch(r.Context(), userID)
		if profile == nil {
			h.renderer.Render(w, http.StatusNotFound, "profile_missing.html", pageData{Title: "Profile Not Found"})
			return
		}
		controller = h.registry.GetOrCreate(userID, *profile)
	}

	snap := controller.Snapshot()
	data := profilePageData{
		Title:     "Edit Profile",
		LastError: snap.LastError,
		Saved:     saved && snap.LastError == "",
		CSRFToken: middleware.CSRFTokenFromRequest(r),
	}
	if snap.Profile.FirstName != nil {
		data.FirstName = *snap.Profile.FirstName
	}
	if snap.Profile.AvatarURL != nil {
		data.AvatarURL = *snap.Profile.AvatarURL
	}
	if snap.Profile.Email != nil {
		data.Email = *snap.Profile.Email
	}

	body, renderErr := h.renderer.RenderBytes("profile.html", data)
	if renderErr != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !saved && h.views != nil && snap.Phase == optimistic.PhaseConfirmed && snap.LastError == "" {
		h.views.Put(userID, body)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

// Submit はフォームからの部分更新をコントローラへ送信する。
// POST /profile
// コントローラが表示値を即時更新してからストア書き込みを非同期に開始するため、
// リダイレクト先のGETはネットワーク結果を待たずに新しい値を表示する。
func (h *ProfileHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	controller := h.registry.Get(userID)
	if controller == nil {
		profile := h.profiles.Fetch(r.Context(), userID)
		if profile == nil {
			h.renderer.Render(w, http.StatusNotFound, "profile_missing.html", pageData{Title: "Profile Not Found"})
			return
		}
		controller = h.registry.GetOrCreate(userID, *profile)
	}

	// フォームは両フィールドを常に送信する。片方だけの部分更新はJSON API側で扱う
	firstName := r.PostFormValue("first_name")
	avatarURL := r.PostFormValue("avatar_url")
	partial := model.ProfilePartial{
		FirstName: &firstName,
		AvatarURL: &avatarURL,
	}

	controller.Submit(partial)

	// 次のGETが楽観的表示値をレンダリングするようキャッシュを捨てる
	if h.views != nil {
		h.views.Invalidate(userID)
	}

	http.Redirect(w, r, "/profile?saved=1", http.StatusSeeOther)
}
