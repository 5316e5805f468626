package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/tasky/internal/metrics"
	"github.com/hitoshi/tasky/internal/middleware"
	"github.com/hitoshi/tasky/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監視
	HealthChecker  repository.HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	OTPService  OTPServiceInterface
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService TaskServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS → (Auth → RateLimit)
//
// タスクAPIのみレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var authEvents AuthEventRecorder
	if deps.Metrics != nil {
		authEvents = deps.Metrics
	}
	authHandler := NewAuthHandler(deps.AuthService, deps.OTPService, authEvents, deps.AuthConfig)
	taskHandler := NewTaskHandler(deps.TaskService)
	userHandler := NewUserHandler(deps.UserService)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)

	// --- 監視 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証 ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/send-reset-password-otp", authHandler.SendResetOTP)
		r.Post("/reset-password", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/send-verification-otp", authHandler.SendVerificationOTP)
			r.Post("/verify-email", authHandler.VerifyEmail)
			r.Get("/is-authenticated", authHandler.IsAuthenticated)
		})
	})

	// --- ユーザー ---
	r.Route("/api/user", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/data", userHandler.GetUserData)
		r.Post("/choose-pet", userHandler.ChoosePet)
	})

	// --- タスク ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 作成はタスク作成専用のレート制限を追加する
		r.With(deps.RateLimiter.CreationMiddleware()).Post("/create", taskHandler.Create)
		r.Get("/", taskHandler.List)
		r.Put("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
	})

	return r
}
