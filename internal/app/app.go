// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/serif/internal/auth"
	"github.com/hitoshi/serif/internal/avatar"
	"github.com/hitoshi/serif/internal/blog"
	"github.com/hitoshi/serif/internal/config"
	"github.com/hitoshi/serif/internal/database"
	"github.com/hitoshi/serif/internal/handler"
	"github.com/hitoshi/serif/internal/live"
	"github.com/hitoshi/serif/internal/logger"
	"github.com/hitoshi/serif/internal/metrics"
	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/optimistic"
	"github.com/hitoshi/serif/internal/profile"
	"github.com/hitoshi/serif/internal/repository"
	"github.com/hitoshi/serif/internal/security"
	"github.com/hitoshi/serif/internal/viewcache"
	"github.com/hitoshi/serif/internal/worker/sessioncleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// セッションクリーンアップとブログフィード更新はバックグラウンドで動かす。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. セキュリティ・メトリクス・キャッシュの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewNameSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	views := viewcache.New(cfg.ViewCacheTTL)

	// 4. プロフィールストアアクセサと楽観的編集コントローラ
	profileService := profile.NewService(profileRepo, sanitizer, ssrfGuard, views, collector)

	controllerRegistry := optimistic.NewRegistry(optimistic.RegistryConfig{
		IdleTTL:         cfg.ControllerIdleTTL,
		CleanupInterval: 5 * time.Minute,
	}, profileService, collector)
	defer controllerRegistry.Stop()

	// 5. 認証サービス
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, profileService, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 6. 周辺サービス
	avatarFetcher := avatar.NewFetcher(ssrfGuard, cfg.AvatarTimeout, cfg.AvatarMaxSize)
	blogService := blog.NewService(blog.ServiceConfig{
		BlogURL:     cfg.BlogURL,
		MaxItems:    cfg.BlogMaxItems,
		Timeout:     cfg.BlogFetchTimeout,
		MaxBodySize: cfg.BlogFetchMaxSize,
	}, ssrfGuard, collector)
	wsHandler := live.NewHandler(controllerRegistry, profileService)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ProfileUpdateRate = rate.Limit(float64(cfg.RateLimitProfileUpdate) / 60.0)
	rateLimiterCfg.ProfileUpdateBurst = cfg.RateLimitProfileUpdate
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder: sessionRepo,
		RateLimiter:   rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:        slog.Default(),
		StatusMetrics: collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProfileService: profileService,
		Registry:       controllerRegistry,
		Views:          views,

		Blog:          blogService,
		AvatarFetcher: avatarFetcher,
		DB:            db,
		WSHandler:     wsHandler,

		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. バックグラウンドジョブの起動
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	cleanupJob := sessioncleanup.NewJob(db, slog.Default())
	go cleanupJob.Start(jobCtx)
	go blogService.StartRefreshLoop(jobCtx, cfg.BlogRefreshInterval)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")
	cancelJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
