// Package cleanup は期限切れOTPの定期削除ジョブを提供する。
// OTPの期限は照合時にも判定されるため、このジョブは保存データの整理のみを担う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの既定実行間隔。
const DefaultInterval = time.Hour

// OTPPurger は期限切れOTPの一括削除を抽象化するインターフェース。
// PostgreSQL・MongoDBの各アカウントリポジトリが実装する。
type OTPPurger interface {
	PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は期限切れOTPの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	purger   OTPPurger
	logger   *slog.Logger
	now      func() time.Time
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger OTPPurger, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:   purger,
		logger:   logger,
		now:      time.Now,
		Interval: DefaultInterval,
	}
}

// Run は現在時刻より前に期限切れとなったOTPを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	purged, err := j.purger.PurgeExpiredOTPs(ctx, j.now())
	if err != nil {
		j.logger.Error("otp cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("otp cleanup: %w", err)
	}

	j.logger.Info("otp cleanup completed",
		slog.Int64("purged_count", purged),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降はIntervalごとに実行する。
// ctxがキャンセルされるまでブロックする。失敗はログのみで継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
