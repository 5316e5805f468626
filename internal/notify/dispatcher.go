package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/tasky/internal/model"
	"golang.org/x/time/rate"
)

// sendTimeout は1通あたりの送信タイムアウト。
const sendTimeout = 30 * time.Second

// DispatcherConfig はDispatcherの設定。
type DispatcherConfig struct {
	QueueSize  int // キュー長（デフォルト: 100）
	RatePerMin int // 1分あたりの最大送信数（デフォルト: 60）
}

// DropObserver はキュー溢れで破棄したメールを通知される。メトリクス記録に用いる。
type DropObserver func(kind string)

// Dispatcher はメール送信をリクエスト処理から切り離す。
// 有界キューと単一ワーカーで送信し、送信ペースはトークンバケットで抑える。
// 送信失敗はログに記録するのみで呼び出し元には返さない。
type Dispatcher struct {
	mailer  Mailer
	logger  *slog.Logger
	limiter *rate.Limiter
	queue   chan envelope
	onDrop  DropObserver

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type envelope struct {
	kind string
	msg  Message
}

// NewDispatcher はDispatcherを生成し、送信ワーカーを起動する。
func NewDispatcher(mailer Mailer, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = 60
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:  mailer,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), 1),
		queue:   make(chan envelope, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// SetDropObserver はキュー溢れ時のコールバックを設定する。起動直後に1度だけ呼ぶこと。
func (d *Dispatcher) SetDropObserver(fn DropObserver) {
	d.onDrop = fn
}

// Enqueue はメールを送信キューに積む。ブロックしない。
// キューが満杯、またはClose済みの場合は破棄してfalseを返す。
func (d *Dispatcher) Enqueue(kind string, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("停止済みのためメールを破棄しました",
			slog.String("kind", kind),
		)
		return false
	}

	select {
	case d.queue <- envelope{kind: kind, msg: msg}:
		return true
	default:
		d.logger.Warn("送信キューが満杯のためメールを破棄しました",
			slog.String("kind", kind),
			slog.Int("queue_size", cap(d.queue)),
		)
		if d.onDrop != nil {
			d.onDrop(kind)
		}
		return false
	}
}

// Close は新規受付を停止し、キューに残ったメールを送信し終えるまで待つ。
// ctxが先にキャンセルされた場合は未送信分を破棄して戻る。
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for env := range d.queue {
		if err := d.limiter.Wait(d.ctx); err != nil {
			// 停止待ちがタイムアウトした
			d.logger.Warn("停止処理中のため未送信メールを破棄しました",
				slog.String("kind", env.kind),
			)
			continue
		}
		d.send(env)
	}
}

func (d *Dispatcher) send(env envelope) {
	ctx, cancel := context.WithTimeout(d.ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	if err := d.mailer.Send(ctx, env.msg); err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}
		d.logger.Log(ctx, level, "メール送信に失敗しました",
			slog.String("kind", env.kind),
			slog.String("error", err.Error()),
		)
		return
	}

	d.logger.Info("メールを送信しました",
		slog.String("kind", env.kind),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// メール種別
const (
	KindWelcome         = "welcome"
	KindVerificationOTP = "verification_otp"
	KindResetOTP        = "reset_otp"
)

// NotifyWelcome は登録完了メールの送信を依頼する。
func (d *Dispatcher) NotifyWelcome(_ context.Context, account *model.Account) {
	d.Enqueue(KindWelcome, WelcomeMessage(account.Name, account.Email))
}

// NotifyVerificationOTP はメール検証用OTPの送信を依頼する。
func (d *Dispatcher) NotifyVerificationOTP(_ context.Context, account *model.Account, code string) {
	d.Enqueue(KindVerificationOTP, VerificationOTPMessage(account.Name, account.Email, code))
}

// NotifyResetOTP はパスワードリセット用OTPの送信を依頼する。
func (d *Dispatcher) NotifyResetOTP(_ context.Context, account *model.Account, code string) {
	d.Enqueue(KindResetOTP, ResetOTPMessage(account.Name, account.Email, code))
}
