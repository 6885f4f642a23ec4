package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/serif/internal/blog"
)

type mockBlogReader struct {
	posts []blog.Post
}

func (m *mockBlogReader) Latest() []blog.Post { return m.posts }

// ランディングページにヒーローコピーとCTAが含まれることを検証
func TestPageHandler_Landing_RendersHero(t *testing.T) {
	h := NewPageHandler(NewRenderer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Landing(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Amplify your voice with striking posts.") {
		t.Error("body should contain the hero headline")
	}
	if !strings.Contains(body, "AI-enabled") {
		t.Error("body should contain the badge")
	}
	if !strings.Contains(body, `href="/login"`) {
		t.Error("body should link the primary CTA to /login")
	}
	if strings.Contains(body, "Latest from the blog") {
		t.Error("latest posts section should be omitted when there are no posts")
	}
}

// 記事がある場合に最新記事セクションが表示されることを検証
func TestPageHandler_Landing_RendersLatestPosts(t *testing.T) {
	reader := &mockBlogReader{
		posts: []blog.Post{
			{
				Title:       "Writing your first post",
				Link:        "https://blog.example.com/first-post",
				PublishedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	h := NewPageHandler(NewRenderer(), reader)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Landing(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Latest from the blog") {
		t.Error("body should contain the latest posts section")
	}
	if !strings.Contains(body, "Writing your first post") {
		t.Error("body should contain the post title")
	}
	if !strings.Contains(body, "Jan 15, 2026") {
		t.Error("body should contain the formatted publish date")
	}
}

// デザインシステムページがレンダリングされることを検証
func TestPageHandler_Styles_RendersDesignSystem(t *testing.T) {
	h := NewPageHandler(NewRenderer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/styles", nil)
	rec := httptest.NewRecorder()

	h.Styles(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Design System") {
		t.Error("body should contain the design system heading")
	}
}

// ログインページにGoogleサインイン導線が含まれることを検証
func TestPageHandler_Login_RendersGoogleSignIn(t *testing.T) {
	h := NewPageHandler(NewRenderer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Continue with Google") {
		t.Error("body should contain the Google sign-in button")
	}
	if !strings.Contains(body, `href="/auth/google/login"`) {
		t.Error("sign-in button should link to the OAuth login route")
	}
}
