package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/model"
)

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return &model.Session{
		ID:        "session-abc",
		ProfileID: "profile-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:8080",
		SessionMaxAge: 86400,
	}
}

// LoginがstateをCookieに保存して認可URLへリダイレクトすることを検証
func TestAuthHandler_Login_SetsStateCookieAndRedirects(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}

	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatal("oauth state cookie should be set")
	}

	loc := rec.Header().Get("Location")
	if loc != "https://accounts.google.com/o/oauth2/auth?state="+state {
		t.Errorf("Location = %q should carry the same state as the cookie", loc)
	}
}

// コールバック成功でセッションCookieが設定され、プロフィールページへ誘導されることを検証
func TestAuthHandler_Callback_Success_SetsSessionCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=state-abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-abc"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	if loc := rec.Header().Get("Location"); loc != "/profile" {
		t.Errorf("Location = %q, want /profile", loc)
	}

	var sessionValue string
	var stateCleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionValue = c.Value
			if !c.HttpOnly {
				t.Error("session cookie should be HTTP Only")
			}
		}
		if c.Name == oauthStateCookie && c.MaxAge < 0 {
			stateCleared = true
		}
	}
	if sessionValue != "session-abc" {
		t.Errorf("session cookie = %q, want session-abc", sessionValue)
	}
	if !stateCleared {
		t.Error("oauth state cookie should be cleared")
	}
}

// stateの不一致が400で拒否されることを検証
func TestAuthHandler_Callback_StateMismatch_Returns400(t *testing.T) {
	called := false
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-abc"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("HandleCallback should not be called on state mismatch")
	}
}

// 認可コードなしが400で拒否されることを検証
func TestAuthHandler_Callback_MissingCode_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=state-abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-abc"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// 認証処理の失敗が500になることを検証
func TestAuthHandler_Callback_ServiceError_Returns500(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			return nil, errors.New("token exchange failed")
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=state-abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "state-abc"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// Logoutがセッションを破棄してCookieをクリアすることを検証
func TestAuthHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var deletedSessionID string
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			deletedSessionID = sessionID
			return nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if deletedSessionID != "session-abc" {
		t.Errorf("deleted session = %q, want session-abc", deletedSessionID)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie should be cleared")
	}
}

// セッション破棄に失敗してもCookieはクリアされることを検証
func TestAuthHandler_Logout_ServiceError_StillClearsCookie(t *testing.T) {
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("store unavailable")
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie should be cleared even when logout fails")
	}
}
