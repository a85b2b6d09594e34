package syndication

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

// SourceImporter は配信元1件の取り込みを実行するインターフェース。
type SourceImporter interface {
	Import(ctx context.Context, src model.Source) (int, error)
}

// Scheduler は配信元の取り込みを一定間隔で実行する。
// フィードURLを持つ配信元を kaynaklar から読み、semaphoreパターンで並列数を制御する。
// 失敗した配信元は指数バックオフで次回以降のサイクルから外す。
type Scheduler struct {
	store          *storage.Store
	importer       SourceImporter
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time

	mu    sync.Mutex
	state map[model.ID]*sourceState
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	store *storage.Store,
	importer SourceImporter,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		store:          store,
		importer:       importer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
		state:          make(map[model.ID]*sourceState),
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("syndication scheduler started",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syndication scheduler stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("syndication cycle failed", slog.String("error", err.Error()))
	}
}

// RunOnce は取り込み対象の配信元を1回処理し、追加した記事の合計数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	sources, err := repository.Sources.List(ctx, s.store)
	if err != nil {
		return 0, err
	}
	due := s.dueSources(sources)
	if len(due) == 0 {
		s.logger.Info("no sources due for import")
		return 0, nil
	}

	s.logger.Info("syndication cycle started", slog.Int("source_count", len(due)))

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for _, src := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(src model.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := s.importer.Import(ctx, src)
			s.record(src.ID, err)
			if err != nil {
				s.logger.Error("source import failed",
					slog.String("source", src.Name),
					slog.String("feed_url", src.FeedURL),
					slog.String("error", err.Error()),
				)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(src)
	}

	wg.Wait()

	s.logger.Info("syndication cycle finished",
		slog.Int("source_count", len(due)),
		slog.Int("items_inserted", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return total, nil
}

// dueSources はフィードURLかサイトURLを持ち、バックオフ中でない配信元を返す。
// フィードURLの無い配信元は取り込み時にサイトURLから検出する。
func (s *Scheduler) dueSources(sources []model.Source) []model.Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]model.Source, 0, len(sources))
	for _, src := range sources {
		if src.FeedURL == "" && src.SiteURL == "" {
			continue
		}
		if st, ok := s.state[src.ID]; ok && !st.due(now) {
			continue
		}
		out = append(out, src)
	}
	return out
}

// record は取り込み結果を配信元の状態に反映する。
func (s *Scheduler) record(id model.ID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[id]
	if !ok {
		st = &sourceState{}
		s.state[id] = st
	}
	if err == nil {
		st.applySuccess()
		return
	}

	result := FetchResultBackoff
	var fe *FetchError
	if errors.As(err, &fe) {
		result = fe.Result()
	}
	st.applyFailure(result, s.now())
}
