// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// ログイン時にも期限切れは取り除かれるが、ログインが無い期間も
// oturumlar が肥大化しないよう日次で掃除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPruner は期限切れセッションを削除する。
type SessionPruner interface {
	PruneExpiredSessions(ctx context.Context) (int, error)
}

// CleanupJob は期限切れセッションの削除ジョブ。冪等に実行できる。
type CleanupJob struct {
	pruner SessionPruner
	logger *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(pruner SessionPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		pruner: pruner,
		logger: logger,
	}
}

// Run は期限切れセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	removed, err := j.pruner.PruneExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to run session cleanup: %w", err)
	}

	j.logger.Info("session cleanup completed",
		slog.Int("deleted_count", removed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔でRunを繰り返す。起動直後に1回実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	// エラーはRun内でログ出力済み
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
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
