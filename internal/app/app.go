// Package app はサブコマンドごとの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/savsata/gundem/internal/admin"
	"github.com/savsata/gundem/internal/auth"
	"github.com/savsata/gundem/internal/comment"
	"github.com/savsata/gundem/internal/config"
	"github.com/savsata/gundem/internal/database"
	"github.com/savsata/gundem/internal/handler"
	"github.com/savsata/gundem/internal/logger"
	"github.com/savsata/gundem/internal/message"
	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/middleware"
	"github.com/savsata/gundem/internal/news"
	"github.com/savsata/gundem/internal/notification"
	"github.com/savsata/gundem/internal/poll"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/security"
	"github.com/savsata/gundem/internal/storage"
	"github.com/savsata/gundem/internal/user"
	"github.com/savsata/gundem/internal/visitor"
	"github.com/savsata/gundem/internal/worker/cleanup"
	"github.com/savsata/gundem/internal/worker/sitemap"
	"github.com/savsata/gundem/internal/worker/syndication"
)

// sessionCleanupInterval は期限切れセッションの掃除間隔。
const sessionCleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, "")

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
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	// serve と worker のログを区別できるようにする
	slog.SetDefault(slog.Default().With(slog.String("command", string(cmd))))

	slog.Info("starting application",
		slog.String("storage", string(cfg.StorageBackend)),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	case CommandNormalize:
		return runNormalize(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openStore は設定されたバックエンドでStoreを生成する。
// 返すclose関数はバックエンドが保持する接続を閉じる。
func openStore(ctx context.Context, cfg *config.Config, observer storage.SaveObserver) (*storage.Store, func(), error) {
	opts := []storage.Option{storage.WithLogger(slog.Default())}
	if observer != nil {
		opts = append(opts, storage.WithSaveObserver(observer))
	}

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("database connection established")
		return storage.NewStore(storage.NewPostgresBackend(db), opts...), func() { db.Close() }, nil
	case config.StorageMemory:
		slog.Warn("using in-memory storage, data will not persist")
		return storage.NewStore(storage.NewMemoryBackend(), opts...), func() {}, nil
	default:
		backend, err := storage.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		slog.Info("file storage ready", slog.String("dir", backend.Dir()))
		return storage.NewStore(backend, opts...), func() {}, nil
	}
}

// newMetrics はプロセス共通のレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// routerOptions はルーター構築時に外から差し込む依存。
type routerOptions struct {
	metrics     metrics.MetricsCollector
	gatherer    prometheus.Gatherer
	rateLimiter *middleware.RateLimiter
}

// buildRouter はStore上に全サービスを組み立て、HTTPハンドラーを返す。
func buildRouter(cfg *config.Config, store *storage.Store, opts routerOptions) http.Handler {
	m := opts.metrics
	if m == nil {
		m = metrics.Nop{}
	}
	sanitizer := security.NewSanitizer()

	authService := auth.NewService(store, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	commentService := comment.NewService(store, sanitizer, m, cfg.ThreadMaxDepth)
	visitService := visitor.NewService(store, cfg.VisitorLogLimit)

	deps := &handler.RouterDeps{
		Logger:        slog.Default(),
		HealthChecker: store,
		Metrics:       m,

		SessionFinder:     authService,
		AdminChecker:      authService,
		VisitRecorder:     visitService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: opts.rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:         user.NewService(store, commentService, m),
		NotificationService: notification.NewService(store, m),
		NewsService:         news.NewService(store, sanitizer, m),
		CommentService:      commentService,
		PollService:         poll.NewService(store, m),
		MessageService:      message.NewService(store, m),
		AdminService:        admin.NewService(repository.NewTable(store)),
		VisitService:        visitService,
	}
	if opts.gatherer != nil {
		deps.MetricsHandler = metrics.Handler(opts.gatherer)
	}
	if cfg.PublicDir != "" {
		deps.StaticHandler = http.FileServer(http.Dir(cfg.PublicDir))
	}

	return handler.NewRouter(deps)
}

// runServe はAPIサーバーモードで起動する。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	reg, collector := newMetrics()

	store, closeStore, err := openStore(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer closeStore()

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))
	defer rateLimiter.Stop()

	router := buildRouter(cfg, store, routerOptions{
		metrics:     collector,
		gatherer:    reg,
		rateLimiter: rateLimiter,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 配信元の取り込み、サイトマップ生成、セッション掃除をコンテキストのキャンセルまで実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	_, collector := newMetrics()

	store, closeStore, err := openStore(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer closeStore()

	logger := slog.Default()

	importer := syndication.NewImporter(
		store,
		security.NewFetchGuard(cfg.FetchTimeout),
		security.NewSanitizer(),
		collector,
		logger,
		cfg.FetchMaxSize,
		0,
	)
	scheduler := syndication.NewScheduler(store, importer, logger, cfg.FetchMaxConcurrent)

	generator := sitemap.NewGenerator(store, cfg.PublicDir, cfg.BaseURL, collector, logger)

	authService := auth.NewService(store, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	cleanupJob := cleanup.NewCleanupJob(authService, logger)

	slog.Info("worker starting",
		slog.Duration("syndication_interval", cfg.SyndicationInterval),
		slog.Duration("sitemap_interval", cfg.SitemapInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	go generator.Start(ctx, cfg.SitemapInterval)
	go cleanupJob.Start(ctx, sessionCleanupInterval)

	// 取り込みスケジューラはメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyndicationInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLバックエンドのスキーマを操作する。
// 引数なしまたは "up" で適用、"down" で全て戻し、"status" で現在のバージョンを表示する。
func runMigrate(cfg *config.Config, args []string) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=postgres, got %q", cfg.StorageBackend)
	}

	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	logURL := slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL))

	switch action {
	case "up":
		slog.Info("running database migrations", logURL)
		st, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully",
			slog.Uint64("version", uint64(st.Version)),
			slog.Bool("dirty", st.Dirty),
		)
	case "down":
		slog.Warn("rolling back database migrations", logURL)
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back")
	case "status":
		st, err := database.CurrentStatus(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		slog.Info("database migration status",
			slog.Uint64("version", uint64(st.Version)),
			slog.Bool("dirty", st.Dirty),
		)
	default:
		return fmt.Errorf("unknown migrate action %q (available: up, down, status)", action)
	}
	return nil
}

// runNormalize はデータセット全体の正規化を1回実行する。
func runNormalize(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := news.NewService(store, security.NewSanitizer(), nil).Normalize(ctx)
	if err != nil {
		return fmt.Errorf("normalize failed: %w", err)
	}

	slog.Info("dataset normalized",
		slog.Int("news", result.News),
		slog.Int("users", result.Users),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(url string) error {
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
