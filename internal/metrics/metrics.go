// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ドメインサービス、ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordComment(isReply bool)
	RecordNotifications(kind string, count int)
	RecordToggle(kind string, on bool)
	RecordVote()
	RecordPublish(isReshare bool)
	RecordImport(source string, inserted int)
	RecordImportFailure(source string, reason string)
	RecordHTTPStatus(statusCode int)
	RecordSitemap(urlCount int)
	ObserveSave(collection string, duration time.Duration, err error)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	comments      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	toggles       *prometheus.CounterVec
	votes         prometheus.Counter
	published     *prometheus.CounterVec
	imported      prometheus.Counter
	importFail    *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	sitemapURLs   prometheus.Gauge
	saveLatency   *prometheus.HistogramVec
	saveFail      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_comments_total",
			Help: "投稿されたコメント数",
		}, []string{"type"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_notifications_delivered_total",
			Help: "配信された通知数",
		}, []string{"kind"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_toggles_total",
			Help: "いいね・保存・フォローの切り替え回数",
		}, []string{"kind", "state"}),
		votes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gundem_poll_votes_total",
			Help: "受け付けた投票数",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_articles_published_total",
			Help: "ユーザーが公開した記事数",
		}, []string{"type"}),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gundem_articles_imported_total",
			Help: "配信元から取り込んだ記事数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_import_fail_total",
			Help: "配信元取り込みの失敗数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sitemapURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gundem_sitemap_urls",
			Help: "最後に生成したサイトマップのURL数",
		}),
		saveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gundem_storage_save_seconds",
			Help:    "コレクション保存のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection"}),
		saveFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gundem_storage_save_fail_total",
			Help: "コレクション保存の失敗数",
		}, []string{"collection"}),
	}

	reg.MustRegister(
		c.comments,
		c.notifications,
		c.toggles,
		c.votes,
		c.published,
		c.imported,
		c.importFail,
		c.httpStatus,
		c.sitemapURLs,
		c.saveLatency,
		c.saveFail,
	)

	return c
}

// RecordComment はコメント投稿を記録する。
func (c *Collector) RecordComment(isReply bool) {
	if isReply {
		c.comments.WithLabelValues("reply").Inc()
		return
	}
	c.comments.WithLabelValues("root").Inc()
}

// RecordNotifications は配信した通知数を種別ごとに記録する。
func (c *Collector) RecordNotifications(kind string, count int) {
	c.notifications.WithLabelValues(kind).Add(float64(count))
}

// RecordToggle は切り替え操作の結果を記録する。
func (c *Collector) RecordToggle(kind string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	c.toggles.WithLabelValues(kind, state).Inc()
}

// RecordVote は投票を記録する。
func (c *Collector) RecordVote() {
	c.votes.Inc()
}

// RecordPublish は記事公開を記録する。
func (c *Collector) RecordPublish(isReshare bool) {
	if isReshare {
		c.published.WithLabelValues("reshare").Inc()
		return
	}
	c.published.WithLabelValues("original").Inc()
}

// RecordImport は取り込んだ記事数を記録する。
func (c *Collector) RecordImport(source string, inserted int) {
	c.imported.Add(float64(inserted))
}

// RecordImportFailure は取り込み失敗を記録する。
func (c *Collector) RecordImportFailure(source string, reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSitemap は生成したサイトマップのURL数を記録する。
func (c *Collector) RecordSitemap(urlCount int) {
	c.sitemapURLs.Set(float64(urlCount))
}

// ObserveSave はコレクション保存のレイテンシと失敗を記録する。
// storage.SaveObserver を実装する。
func (c *Collector) ObserveSave(collection string, duration time.Duration, err error) {
	c.saveLatency.WithLabelValues(collection).Observe(duration.Seconds())
	if err != nil {
		c.saveFail.WithLabelValues(collection).Inc()
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewStatusMiddleware はレスポンスのステータスコードを記録するミドルウェアを返す。
func NewStatusMiddleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPStatus(rec.status)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordComment(bool)                       {}
func (Nop) RecordNotifications(string, int)          {}
func (Nop) RecordToggle(string, bool)                {}
func (Nop) RecordVote()                              {}
func (Nop) RecordPublish(bool)                       {}
func (Nop) RecordImport(string, int)                 {}
func (Nop) RecordImportFailure(string, string)       {}
func (Nop) RecordHTTPStatus(int)                     {}
func (Nop) RecordSitemap(int)                        {}
func (Nop) ObserveSave(string, time.Duration, error) {}
