package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/serif/internal/model"
)

type mockImageFetcher struct {
	fetchImageFn func(ctx context.Context, avatarURL string) ([]byte, string)
}

func (m *mockImageFetcher) FetchImage(ctx context.Context, avatarURL string) ([]byte, string) {
	if m.fetchImageFn != nil {
		return m.fetchImageFn(ctx, avatarURL)
	}
	return nil, ""
}

// 取得成功時に画像バイト列とMIMEタイプが中継されることを検証
func TestAvatarHandler_Serve_ProxiesImage(t *testing.T) {
	registry := newTestRegistry(&mockUpdater{})
	defer registry.Stop()

	imageData := []byte{0x89, 0x50, 0x4e, 0x47} // PNGヘッダー
	fetcher := &mockImageFetcher{
		fetchImageFn: func(ctx context.Context, avatarURL string) ([]byte, string) {
			if avatarURL != "https://example.com/a.png" {
				t.Errorf("avatarURL = %q, want the stored URL", avatarURL)
			}
			return imageData, "image/png"
		},
	}
	h := NewAvatarHandler(fetcherWith(testProfile()), registry, fetcher)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/avatar", nil), "user-1")
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), imageData) {
		t.Error("body should be the proxied image bytes")
	}
}

// avatar_url未設定でプレースホルダSVGが返ることを検証
func TestAvatarHandler_Serve_NoAvatarURL_ReturnsPlaceholder(t *testing.T) {
	registry := newTestRegistry(&mockUpdater{})
	defer registry.Stop()

	profile := testProfile()
	profile.AvatarURL = nil
	h := NewAvatarHandler(fetcherWith(profile), registry, &mockImageFetcher{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/avatar", nil), "user-1")
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("body should be the placeholder SVG")
	}
}

// 取得失敗（SSRFガード拒否を含む）でプレースホルダSVGが返ることを検証
func TestAvatarHandler_Serve_FetchFailure_ReturnsPlaceholder(t *testing.T) {
	registry := newTestRegistry(&mockUpdater{})
	defer registry.Stop()

	fetcher := &mockImageFetcher{
		fetchImageFn: func(ctx context.Context, avatarURL string) ([]byte, string) {
			return nil, ""
		},
	}
	h := NewAvatarHandler(fetcherWith(testProfile()), registry, fetcher)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/avatar", nil), "user-1")
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("body should be the placeholder SVG on fetch failure")
	}
}

// コントローラの表示値（楽観的反映後のURL）が優先されることを検証
func TestAvatarHandler_Serve_UsesDisplayedAvatarURL(t *testing.T) {
	release := make(chan struct{})
	updater := &mockUpdater{
		updateFn: func(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
			<-release
			return true, ""
		},
	}
	registry := newTestRegistry(updater)
	defer registry.Stop()

	controller := registry.GetOrCreate("user-1", *testProfile())
	controller.Submit(model.ProfilePartial{AvatarURL: strPtr("https://example.com/new.png")})

	var requestedURL string
	fetcher := &mockImageFetcher{
		fetchImageFn: func(ctx context.Context, avatarURL string) ([]byte, string) {
			requestedURL = avatarURL
			return []byte("img"), "image/png"
		},
	}
	h := NewAvatarHandler(fetcherWith(testProfile()), registry, fetcher)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/avatar", nil), "user-1")
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if requestedURL != "https://example.com/new.png" {
		t.Errorf("fetched URL = %q, want the optimistic avatar URL", requestedURL)
	}

	close(release)
}

// 認証コンテキストなしが401になることを検証
func TestAvatarHandler_Serve_NoUserID_Returns401(t *testing.T) {
	registry := newTestRegistry(&mockUpdater{})
	defer registry.Stop()
	h := NewAvatarHandler(fetcherWith(testProfile()), registry, &mockImageFetcher{})

	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/avatar", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
