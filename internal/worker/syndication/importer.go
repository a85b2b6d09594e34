// Package syndication は配信元フィードからの記事取り込みを提供する。
// スケジューラ、取り込み処理、リトライ/バックオフ戦略を含む。
package syndication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/news"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/security"
	"github.com/savsata/gundem/internal/storage"
)

const (
	userAgent       = "Gundem/1.0 (+news importer)"
	summaryLength   = 280
	defaultMaxItems = 30
)

// FeedGuard はSSRF対策済みの取得手段を提供するインターフェース。
type FeedGuard interface {
	ValidateURL(rawURL string) error
	Client() *http.Client
}

// Importer は1つの配信元フィードを取得し、未登録の記事を haberler の先頭に追加する。
// 重複判定は kaynak.link（元記事のURL）で行う。
type Importer struct {
	store       *storage.Store
	guard       FeedGuard
	sanitizer   security.Sanitizer
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	maxBodySize int64
	maxItems    int
	discoverer  *Discoverer
	now         func() time.Time
}

// NewImporter はImporterの新しいインスタンスを生成する。
// maxItemsが0以下の場合は1フィードあたり30件まで取り込む。
func NewImporter(
	store *storage.Store,
	guard FeedGuard,
	sanitizer security.Sanitizer,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	maxBodySize int64,
	maxItems int,
) *Importer {
	if m == nil {
		m = metrics.Nop{}
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &Importer{
		store:       store,
		guard:       guard,
		sanitizer:   sanitizer,
		metrics:     m,
		logger:      logger,
		maxBodySize: maxBodySize,
		maxItems:    maxItems,
		discoverer:  NewDiscoverer(guard),
		now:         time.Now,
	}
}

// candidate はフィードの1記事を取り込み前の形にしたもの。
type candidate struct {
	title       string
	link        string
	summary     string
	bodyHTML    string
	imageURL    string
	category    string
	publishedAt time.Time
}

// Import は配信元のフィードを取得し、追加した記事数を返す。
// 取得・解析の失敗は *FetchError で返す。
func (im *Importer) Import(ctx context.Context, src model.Source) (int, error) {
	start := time.Now()

	if src.FeedURL == "" {
		resolved, err := im.resolveSource(ctx, src)
		if err != nil {
			im.metrics.RecordImportFailure(src.Name, failureReason(err))
			return 0, err
		}
		src = resolved
	}

	items, err := im.fetch(ctx, src.FeedURL)
	if err != nil {
		im.metrics.RecordImportFailure(src.Name, failureReason(err))
		return 0, err
	}

	inserted, err := im.save(ctx, src, items)
	if err != nil {
		im.metrics.RecordImportFailure(src.Name, "storage")
		return 0, fmt.Errorf("failed to save imported articles: %w", err)
	}
	im.metrics.RecordImport(src.Name, inserted)

	im.logger.Info("source imported",
		slog.String("source", src.Name),
		slog.String("feed_url", src.FeedURL),
		slog.Int("items_total", len(items)),
		slog.Int("items_inserted", inserted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return inserted, nil
}

// failureReason はメトリクスに記録する失敗理由を返す。
func failureReason(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return "storage"
}

// resolveSource はフィードURLが未設定の配信元について、サイトURLからフィードとロゴを検出し
// kaynaklar に保存する。以降の取り込みでは検出済みのフィードURLを使う。
func (im *Importer) resolveSource(ctx context.Context, src model.Source) (model.Source, error) {
	feedURL, err := im.discoverer.DiscoverFeed(ctx, news.CleanURL(src.SiteURL))
	if err != nil {
		return src, err
	}
	src.FeedURL = feedURL
	if src.LogoURL == "" {
		src.LogoURL = im.discoverer.DiscoverLogo(ctx, src.SiteURL)
	}

	err = im.store.Update(ctx, []string{repository.Sources.Name()}, func(tx *storage.Tx) error {
		sources, err := repository.Sources.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindByID(sources, src.ID)
		if i < 0 {
			return nil
		}
		sources[i].FeedURL = src.FeedURL
		if sources[i].LogoURL == "" {
			sources[i].LogoURL = src.LogoURL
		}
		return repository.Sources.Save(tx, sources)
	})
	if err != nil {
		return src, fmt.Errorf("failed to save discovered feed: %w", err)
	}

	im.logger.Info("feed discovered",
		slog.String("source", src.Name),
		slog.String("site_url", src.SiteURL),
		slog.String("feed_url", src.FeedURL),
	)
	return src, nil
}

// fetch はフィードを取得して解析する。
func (im *Importer) fetch(ctx context.Context, feedURL string) ([]candidate, error) {
	feedURL = news.CleanURL(feedURL)
	if err := im.guard.ValidateURL(feedURL); err != nil {
		return nil, &FetchError{Reason: "blocked_url", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{Reason: "bad_request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := im.guard.Client().Do(req)
	if err != nil {
		return nil, &FetchError{Reason: "http_error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Reason: "http_status", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBodySize))
	if err != nil {
		return nil, &FetchError{Reason: "read_error", Err: err}
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, &FetchError{Reason: "parse_error", Err: err}
	}
	return im.convertItems(parsed.Items), nil
}

// convertItems はgofeedの記事を取り込み候補に変換する。リンクもタイトルも無い記事は捨てる。
func (im *Importer) convertItems(items []*gofeed.Item) []candidate {
	out := make([]candidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if len(out) >= im.maxItems {
			break
		}

		c := candidate{
			title:    strings.TrimSpace(item.Title),
			link:     news.CleanURL(item.Link),
			bodyHTML: item.Content,
		}
		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if c.link == "" && security.IsHTTPURL(item.GUID) {
			c.link = item.GUID
		}
		if c.title == "" || !security.IsHTTPURL(c.link) {
			continue
		}

		if c.bodyHTML == "" {
			c.bodyHTML = item.Description
		}
		c.summary = plainSummary(item.Description)
		if c.summary == "" {
			c.summary = plainSummary(c.bodyHTML)
		}
		c.imageURL = itemImage(item)
		if len(item.Categories) > 0 {
			c.category = item.Categories[0]
		}

		switch {
		case item.PublishedParsed != nil:
			c.publishedAt = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			c.publishedAt = *item.UpdatedParsed
		default:
			c.publishedAt = im.now()
		}

		out = append(out, c)
	}
	return out
}

// plainSummary はHTMLからテキストを取り出し、空白をまとめて要約の長さに切り詰める。
func plainSummary(rawHTML string) string {
	text := strings.Join(strings.Fields(news.PlainText(rawHTML)), " ")
	return model.ShortenTitle(text, summaryLength)
}

// itemImage は記事の画像URLをフィードの image、画像の enclosure の順に探す。
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && security.IsHTTPURL(item.Image.URL) {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && security.IsHTTPURL(enc.URL) {
			return enc.URL
		}
	}
	return model.DefaultImageURL
}

// save は未登録の候補を1回の保存で haberler の先頭に追加する。
// フィード内の並び順（新しい順）を保つ。
func (im *Importer) save(ctx context.Context, src model.Source, items []candidate) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	inserted := 0
	names := []string{repository.News.Name(), repository.Categories.Name()}
	err := im.store.Update(ctx, names, func(tx *storage.Tx) error {
		all, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		categories, err := repository.Categories.Load(tx)
		if err != nil {
			return err
		}
		known := news.CategoryNames(categories)

		seen := make(map[string]bool, len(all))
		for _, a := range all {
			if a.Source != nil && a.Source.SiteURL != "" {
				seen[a.Source.SiteURL] = true
			}
		}

		fresh := make([]model.Article, 0, len(items))
		for _, c := range items {
			if seen[c.link] {
				continue
			}
			seen[c.link] = true

			id, err := repository.News.NextID(tx)
			if err != nil {
				return err
			}
			fresh = append(fresh, model.Article{
				ID:          id,
				Title:       c.title,
				ShortTitle:  model.ShortenTitle(c.title, news.ShortTitleLength),
				Summary:     c.summary,
				BodyHTML:    im.sanitizer.Article(c.bodyHTML),
				ImageURL:    c.imageURL,
				Category:    news.NormalizeCategory(c.category, known),
				Source:      &model.SourceRef{Name: src.Name, LogoURL: src.LogoURL, SiteURL: c.link},
				PublishedAt: model.FormatTimestamp(c.publishedAt),
			})
		}
		if len(fresh) == 0 {
			return nil
		}

		inserted = len(fresh)
		return repository.News.Save(tx, append(fresh, all...))
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
