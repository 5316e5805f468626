package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/tasky/internal/auth"
	"github.com/hitoshi/tasky/internal/config"
	"github.com/hitoshi/tasky/internal/database"
	"github.com/hitoshi/tasky/internal/handler"
	"github.com/hitoshi/tasky/internal/logger"
	"github.com/hitoshi/tasky/internal/metrics"
	"github.com/hitoshi/tasky/internal/middleware"
	"github.com/hitoshi/tasky/internal/notify"
	"github.com/hitoshi/tasky/internal/security"
	"github.com/hitoshi/tasky/internal/task"
	"github.com/hitoshi/tasky/internal/user"
	"github.com/hitoshi/tasky/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("APP_ENV"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 確定した動作環境でログレベルを再設定する
	logger.SetupDefault(w, cfg.AppEnv)

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
		slog.String("store", cfg.StoreDriver),
		slog.String("env", cfg.AppEnv),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. メール送信
	dispatcher := notify.NewDispatcher(newMailer(cfg), slog.Default(), notify.DispatcherConfig{
		QueueSize:  cfg.MailQueueSize,
		RatePerMin: cfg.MailRatePerMin,
	})
	dispatcher.SetDropObserver(collector.RecordMailDropped)

	// 4. ドメインサービスの初期化
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	authService := auth.NewService(st.accounts, hasher, tokens, dispatcher)
	otpManager := auth.NewOTPManager(st.accounts, hasher, dispatcher, auth.OTPConfig{
		VerifyTTL: cfg.VerifyOTPTTL,
		ResetTTL:  cfg.ResetOTPTTL,
	})
	taskService := task.NewService(st.tasks, security.NewTextSanitizer(), collector)
	userService := user.NewService(st.accounts)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralLimit:   cfg.RateLimitGeneral,
		CreationLimit:  cfg.RateLimitTaskCreate,
		Window:         cfg.RateLimitWindow,
		SweepThreshold: cfg.RateLimitSweepThreshold,
	}, collector)

	deps := &handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthChecker:  st.health,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		OTPService:  otpManager,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:  cfg.IsProduction(),
			SessionMaxAge: int(cfg.SessionTTL.Seconds()),
		},

		TaskService: taskService,
		UserService: userService,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
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

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		_ = dispatcher.Close(context.Background())
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 受付済みのメールを送り切る
	if err := dispatcher.Close(ctx); err != nil {
		slog.Warn("mail queue not fully drained", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newMailer はSMTP設定の有無に応じてMailerを選択する。
func newMailer(cfg *config.Config) notify.Mailer {
	if !cfg.MailEnabled() {
		slog.Info("SMTP_HOST is not set; mail will be logged instead of sent")
		return notify.NewLogMailer(slog.Default())
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SenderEmail,
	})
}

// runWorker はワーカーモードで起動する。
// ストアに接続し、期限切れOTPの削除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	job := cleanup.NewCleanupJob(st.accounts, slog.Default())
	slog.Info("worker starting", slog.Duration("cleanup_interval", job.Interval))

	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
// MongoDBはスキーマを持たないため、インデックス作成のみを行う。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if cfg.StoreDriver == config.StoreDriverMongo {
		st, err := openMongoStore(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		st.close()
		slog.Info("mongo indexes ensured")
		return nil
	}

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
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
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
