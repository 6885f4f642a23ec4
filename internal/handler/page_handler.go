package handler

import (
	"net/http"

	"github.com/hitoshi/serif/internal/blog"
)

// BlogReader はランディングページが必要とするブログサービスインターフェース。
type BlogReader interface {
	Latest() []blog.Post
}

// PageHandler は公開ページ（ランディング、デザインシステム、ログイン）のHTTPハンドラー。
type PageHandler struct {
	renderer *Renderer
	blog     BlogReader
}

// NewPageHandler はPageHandlerを生成する。blogはnilを許容する。
func NewPageHandler(renderer *Renderer, blog BlogReader) *PageHandler {
	return &PageHandler{
		renderer: renderer,
		blog:     blog,
	}
}

// landingData はランディングページのテンプレートデータ。
type landingData struct {
	Title string
	Posts []blog.Post
}

// Landing はマーケティングランディングページを返す。
// GET /
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	data := landingData{Title: "Amplify your voice"}
	if h.blog != nil {
		data.Posts = h.blog.Latest()
	}
	h.renderer.Render(w, http.StatusOK, "landing.html", data)
}

// pageData はデータを持たない静的ページのテンプレートデータ。
type pageData struct {
	Title string
}

// Styles はデザインシステムのリファレンスページを返す。
// GET /styles
func (h *PageHandler) Styles(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "styles.html", pageData{Title: "Design System"})
}

// Login はログインページを返す。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "login.html", pageData{Title: "Sign in"})
}
