package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 運用
	Logger         *slog.Logger
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	AdminChecker      middleware.AdminChecker
	VisitRecorder     middleware.VisitRecorder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	UserService         UserServiceInterface
	NotificationService NotificationServiceInterface
	NewsService         NewsServiceInterface
	CommentService      CommentServiceInterface
	PollService         PollServiceInterface
	MessageService      MessageServiceInterface
	AdminService        AdminServiceInterface
	VisitService        VisitServiceInterface

	// 公開ディレクトリ（フロントエンド、サイトマップ、robots.txt）
	StaticHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS
//	  → VisitorLog → OptionalSession → RateLimit → CSRF
//	  → (Session) → (Admin)
//
// /health と /metrics はアクセスログ・レート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(metrics.NewStatusMiddleware(deps.Metrics))
	}
	// CORS はプリフライトにも効くよう最上位に適用する
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.NotificationService)
	newsHandler := NewNewsHandler(deps.NewsService)
	commentHandler := NewCommentHandler(deps.CommentService)
	pollHandler := NewPollHandler(deps.PollService)
	messageHandler := NewMessageHandler(deps.MessageService)
	adminHandler := NewAdminHandler(deps.AdminService)
	visitHandler := NewVisitHandler(deps.VisitService)

	r.Group(func(r chi.Router) {
		if deps.VisitRecorder != nil {
			r.Use(middleware.NewVisitorLogMiddleware(deps.VisitRecorder))
		}
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.Post("/api/register", authHandler.Register)
		r.Post("/api/login", authHandler.Login)
		r.Post("/api/logout", authHandler.Logout)
		r.Get("/api/user/verify/{username}", authHandler.Verify)

		r.Get("/api/kategoriler", newsHandler.Categories)
		r.Get("/api/haberler", newsHandler.List)
		r.Get("/api/haberler/{id}", newsHandler.Get)
		r.Post("/api/haberler/{id}/view", newsHandler.IncrementView)
		r.Get("/api/search", newsHandler.Search)

		r.Get("/api/user/profile/{username}", userHandler.Profile)
		r.Get("/api/user/stats/{username}", userHandler.Stats)
		r.Get("/api/user/history/{username}", userHandler.History)
		r.Get("/api/user/news/{username}", newsHandler.ListByUser)
		r.Get("/api/user/saved/{username}", userHandler.SavedNews)
		r.Get("/api/users/search", userHandler.Search)
		r.Get("/api/users/list", userHandler.List)

		r.Get("/api/comments/{newsId}", commentHandler.ListFlat)
		r.Get("/api/comments/{newsId}/thread", commentHandler.ListThread)
		r.Get("/api/polls/{newsId}", pollHandler.GetByNews)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))

			r.Get("/api/me", authHandler.Me)

			r.Put("/api/user/profile", userHandler.UpdateProfile)
			r.Post("/api/user/avatar", userHandler.UpdateAvatar)
			r.Post("/api/user/saved", userHandler.ToggleSave)
			r.Post("/api/follow", userHandler.ToggleFollow)
			r.Get("/api/notifications", userHandler.Notifications)
			r.Post("/api/notifications/clear", userHandler.ClearNotifications)

			r.Post("/api/user/news", newsHandler.Publish)
			r.Delete("/api/user/news/{id}", newsHandler.DeleteOwn)
			r.Post("/api/like", newsHandler.ToggleLike)

			r.Post("/api/comments", commentHandler.AddComment)
			r.Post("/api/polls/vote", pollHandler.Vote)

			r.Route("/api/messages", func(r chi.Router) {
				r.Post("/send", messageHandler.Send)
				r.Post("/read", messageHandler.MarkRead)
				r.Get("/thread/{other}", messageHandler.Thread)
				r.Get("/conversations", messageHandler.Conversations)
			})
		})

		// --- 管理者のみのルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(middleware.NewAdminMiddleware(deps.AdminChecker))

			r.Post("/api/normalize", newsHandler.Normalize)
			r.Get("/api/visits/recent", visitHandler.Recent)

			r.Route("/api/admin/{type}", func(r chi.Router) {
				r.Get("/", adminHandler.List)
				r.Post("/", adminHandler.Create)
				r.Get("/{id}", adminHandler.Get)
				r.Put("/{id}", adminHandler.Update)
				r.Delete("/{id}", adminHandler.Delete)
			})
		})

		if deps.StaticHandler != nil {
			r.Handle("/*", deps.StaticHandler)
		}
	})

	return r
}
