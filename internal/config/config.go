package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// 動作環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ストアドライバ
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Store
	// STORE_DRIVER=mongoの場合、DATABASE_URLはMongoDBの接続URIとして扱う。
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"tasky"`

	// Session
	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// OTP
	VerifyOTPTTL time.Duration `env:"VERIFY_OTP_TTL" envDefault:"10m"`
	ResetOTPTTL  time.Duration `env:"RESET_OTP_TTL" envDefault:"15m"`

	// Password
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Rate Limit
	RateLimitGeneral        int           `env:"RATE_LIMIT_GENERAL" envDefault:"30"`
	RateLimitTaskCreate     int           `env:"RATE_LIMIT_TASK_CREATE" envDefault:"10"`
	RateLimitWindow         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitSweepThreshold int           `env:"RATE_LIMIT_SWEEP_THRESHOLD" envDefault:"1000"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`

	// Mail
	// SMTP_HOSTが空の場合はメールを送信せずログに出力する。
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	SenderEmail    string `env:"SENDER_EMAIL" envDefault:"no-reply@tasky.local"`
	MailQueueSize  int    `env:"MAIL_QUEUE_SIZE" envDefault:"100"`
	MailRatePerMin int    `env:"MAIL_RATE_PER_MIN" envDefault:"60"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は未設定のものをまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}

	switch cfg.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return nil, fmt.Errorf("invalid APP_ENV: %q", cfg.AppEnv)
	}

	// レート制限はウィンドウが正、上限が1以上であること
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %v", cfg.RateLimitWindow)
	}
	if cfg.RateLimitGeneral < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_GENERAL must be at least 1: %d", cfg.RateLimitGeneral)
	}
	if cfg.RateLimitTaskCreate < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_TASK_CREATE must be at least 1: %d", cfg.RateLimitTaskCreate)
	}

	return cfg, nil
}

// IsProduction は本番環境かどうかを返す。Cookie属性の切り替えに用いる。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// MailEnabled はSMTP送信が設定されているかを返す。
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}
