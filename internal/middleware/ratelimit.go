package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/tasky/internal/model"
)

// LimitClass はレート制限の種別。種別ごとに独立したカウンタを持つ。
type LimitClass string

const (
	ClassGeneral  LimitClass = "general"
	ClassCreation LimitClass = "creation"
)

const (
	msgGeneralLimited  = "Too many requests. Please try again later."
	msgCreationLimited = "Too many task creations. Please try again later."
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralLimit   int           // API全般のウィンドウあたり上限
	CreationLimit  int           // タスク作成のウィンドウあたり上限
	Window         time.Duration // 固定ウィンドウの長さ
	SweepThreshold int           // このエントリ数を超えたら期限切れエントリを掃除する
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 30 req/min、タスク作成 10 req/min。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralLimit:   30,
		CreationLimit:  10,
		Window:         time.Minute,
		SweepThreshold: 1000,
	}
}

// RateLimitRecorder は拒否件数を記録する。metrics.Collectorが満たす。
type RateLimitRecorder interface {
	RecordRateLimited(class string)
}

// Decision はAdmitの判定結果。
type Decision struct {
	Allowed    bool
	RetryAfter int // 拒否時のみ。次のウィンドウまでの秒数
}

// rateWindow は1キー分の固定ウィンドウ。
type rateWindow struct {
	count       int
	windowStart time.Time
}

// RateLimiter は固定ウィンドウ方式のレート制限を管理する。
// テーブルはプロセス内のみで共有され、キーは "class:identity"。
type RateLimiter struct {
	config   RateLimiterConfig
	recorder RateLimitRecorder

	mu      sync.Mutex
	windows map[string]*rateWindow

	now func() time.Time
}

// NewRateLimiter は新しいRateLimiterを生成する。recorderはnilでもよい。
func NewRateLimiter(config RateLimiterConfig, recorder RateLimitRecorder) *RateLimiter {
	return &RateLimiter{
		config:   config,
		recorder: recorder,
		windows:  make(map[string]*rateWindow),
		now:      time.Now,
	}
}

// Admit はidentityのclass種別のリクエストを許可するか判定する。
func (rl *RateLimiter) Admit(identity string, class LimitClass) Decision {
	limit := rl.limitFor(class)
	key := string(class) + ":" + identity
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		rl.windows[key] = &rateWindow{count: 1, windowStart: now}
		rl.sweepLocked(now)
		return Decision{Allowed: true}
	}

	elapsed := now.Sub(w.windowStart)
	if elapsed > rl.config.Window {
		w.count = 1
		w.windowStart = now
		return Decision{Allowed: true}
	}

	if w.count >= limit {
		return Decision{Allowed: false, RetryAfter: retryAfterSeconds(rl.config.Window - elapsed)}
	}

	w.count++
	return Decision{Allowed: true}
}

// Len は現在管理しているエントリ数を返す。
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証ミドルウェアの後に置いた場合はユーザーID、それ以外は接続元IPで識別する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(ClassGeneral, msgGeneralLimited)
}

// CreationMiddleware はタスク作成専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に数える。
func (rl *RateLimiter) CreationMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(ClassCreation, msgCreationLimited)
}

func (rl *RateLimiter) middleware(class LimitClass, message string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := requestIdentity(r)
			d := rl.Admit(identity, class)
			if !d.Allowed {
				slog.Warn("rate limit exceeded",
					slog.String("identity", identity),
					slog.String("limit_type", string(class)),
					slog.Int("retry_after", d.RetryAfter),
				)
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited(string(class))
				}
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
				WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError(message, d.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limitFor(class LimitClass) int {
	if class == ClassCreation {
		return rl.config.CreationLimit
	}
	return rl.config.GeneralLimit
}

// sweepLocked はテーブルが閾値を超えた場合に1ウィンドウ以上前のエントリを削除する。
// rl.muを保持した状態で呼ぶこと。
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if len(rl.windows) <= rl.config.SweepThreshold {
		return
	}
	cutoff := now.Add(-rl.config.Window)
	for key, w := range rl.windows {
		if w.windowStart.Before(cutoff) {
			delete(rl.windows, key)
		}
	}
}

// retryAfterSeconds は残り時間を秒に切り上げる。最小1秒。
func retryAfterSeconds(remaining time.Duration) int {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func requestIdentity(r *http.Request) string {
	if userID, err := UserIDFromContext(r.Context()); err == nil {
		return userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
