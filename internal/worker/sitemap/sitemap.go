// Package sitemap は公開ディレクトリへのサイトマップと robots.txt の生成を提供する。
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
	"github.com/savsata/gundem/internal/turkish"
)

const (
	// urlsPerPart は1ファイルあたりのURL数の上限（sitemaps.org の制限）。
	urlsPerPart = 50000

	indexFile    = "site_map.xml"
	robotsFile   = "robots.txt"
	xmlns        = "http://www.sitemaps.org/schemas/sitemap/0.9"
	newsPriority = "0.6"
)

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
	Priority string `xml:"priority"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Xmlns    string       `xml:"xmlns,attr"`
	Sitemaps []indexEntry `xml:"sitemap"`
}

type indexEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Result は生成したファイルの概要。
type Result struct {
	Parts int
	URLs  int
}

// Generator は haberler からサイトマップと robots.txt を生成する。
type Generator struct {
	store     *storage.Store
	publicDir string
	baseURL   string
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewGenerator はGeneratorを生成する。baseURL末尾のスラッシュは取り除く。
func NewGenerator(store *storage.Store, publicDir, baseURL string, m metrics.MetricsCollector, logger *slog.Logger) *Generator {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Generator{
		store:     store,
		publicDir: publicDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate は site_map1..N.xml、インデックスの site_map.xml、robots.txt を書き出す。
// 記事が無い場合も空の site_map1.xml を出力する。各ファイルは一時ファイル経由で置き換える。
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	articles, err := repository.News.List(ctx, g.store)
	if err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}

	now := model.FormatTimestamp(g.now())
	entries := make([]urlEntry, 0, len(articles))
	for _, a := range articles {
		lastmod := a.PublishedAt
		if _, ok := model.ParseTimestamp(lastmod); !ok {
			lastmod = now
		}
		entries = append(entries, urlEntry{Loc: g.articleURL(a), LastMod: lastmod, Priority: newsPriority})
	}

	parts := chunk(entries, urlsPerPart)
	if len(parts) == 0 {
		parts = [][]urlEntry{{}}
	}

	index := sitemapIndex{Xmlns: xmlns}
	for i, part := range parts {
		name := fmt.Sprintf("site_map%d.xml", i+1)
		if err := g.writeXML(name, urlSet{Xmlns: xmlns, URLs: part}); err != nil {
			return nil, err
		}
		index.Sitemaps = append(index.Sitemaps, indexEntry{Loc: g.baseURL + "/" + name, LastMod: now})
	}
	if err := g.writeXML(indexFile, index); err != nil {
		return nil, err
	}
	if err := g.WriteRobots(); err != nil {
		return nil, err
	}

	g.metrics.RecordSitemap(len(entries))
	g.logger.Info("sitemap generated",
		slog.Int("parts", len(parts)),
		slog.Int("urls", len(entries)),
	)
	return &Result{Parts: len(parts), URLs: len(entries)}, nil
}

// WriteRobots は管理画面とログイン画面を除外し、サイトマップの場所を示す robots.txt を書き出す。
func (g *Generator) WriteRobots() error {
	lines := []string{
		"User-agent: *",
		"Disallow: /admin/",
		"Disallow: /login/",
		"Sitemap: " + g.baseURL + "/" + indexFile,
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := storage.WriteFileAtomic(filepath.Join(g.publicDir, robotsFile), []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", robotsFile, err)
	}
	return nil
}

// Start は指定間隔でサイトマップを再生成する。起動直後に1回実行する。
func (g *Generator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Info("sitemap scheduler started", slog.Duration("interval", interval))
	g.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("sitemap scheduler stopped")
			return
		case <-ticker.C:
			g.runLogged(ctx)
		}
	}
}

func (g *Generator) runLogged(ctx context.Context) {
	if _, err := g.Generate(ctx); err != nil {
		g.logger.Error("sitemap generation failed", slog.String("error", err.Error()))
	}
}

// articleURL は記事ページのURLを返す。スラッグが空の場合は name を付けない。
func (g *Generator) articleURL(a model.Article) string {
	title := a.ShortTitle
	if title == "" {
		title = a.Title
	}
	loc := g.baseURL + "/?haber=" + a.ID.String()
	if slug := turkish.Slug(title); slug != "" {
		loc += "&name=" + url.QueryEscape(slug)
	}
	return loc
}

func (g *Generator) writeXML(name string, v any) error {
	body, err := xml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	data := append([]byte(xml.Header), body...)
	if err := storage.WriteFileAtomic(filepath.Join(g.publicDir, name), data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func chunk(entries []urlEntry, size int) [][]urlEntry {
	var out [][]urlEntry
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, entries[start:end])
	}
	return out
}
