package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/serif/internal/metrics"
	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/optimistic"
	"github.com/hitoshi/serif/internal/viewcache"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder middleware.SessionFinder
	RateLimiter   *middleware.RateLimiter
	CSRFConfig    middleware.CSRFConfig
	Logger        *slog.Logger
	StatusMetrics middleware.StatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロフィール編集
	ProfileService ProfileFetcher
	Registry       *optimistic.Registry
	Views          *viewcache.Cache

	// 周辺サービス
	Blog          BlogReader
	AvatarFetcher ImageFetcher
	DB            Pinger
	WSHandler     http.Handler // internal/live のWebSocketハンドラー

	// メトリクス公開
	Gatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CSRF
//
// 認証が必要なルートはさらに Session →（APIは RateLimit）を重ねる。
// HTMLページ用のセッションミドルウェアは401の代わりに/loginへリダイレクトする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusMetrics))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	renderer := NewRenderer()
	pageHandler := NewPageHandler(renderer, deps.Blog)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	profileHandler := NewProfileHandler(renderer, deps.ProfileService, deps.Registry, deps.Views)
	apiHandler := NewAPIHandler(deps.ProfileService, deps.Registry)
	avatarHandler := NewAvatarHandler(deps.ProfileService, deps.Registry, deps.AvatarFetcher)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Get("/", pageHandler.Landing)
	r.Get("/styles", pageHandler.Styles)
	r.Get("/login", pageHandler.Login)
	r.Handle("/static/*", StaticHandler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// --- 認証が必要なHTMLページ ---
	// 未認証は/loginへリダイレクト
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageSessionMiddleware(deps.SessionFinder))

		r.Get("/profile", profileHandler.Show)
		r.With(deps.RateLimiter.ProfileUpdateMiddleware()).Post("/profile", profileHandler.Submit)
		r.Get("/avatar", avatarHandler.Serve)
	})

	// --- 認証が必要なJSON API / WebSocket ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/profile", apiHandler.GetProfile)
		r.With(deps.RateLimiter.ProfileUpdateMiddleware()).Patch("/api/profile", apiHandler.UpdateProfile)
		r.Handle("/ws/profile", deps.WSHandler)
	})

	return r
}
