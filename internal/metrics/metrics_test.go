package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherFamily は名前に一致するメトリクスファミリーを返す。
func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスのラベル値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordComment_SplitsRootAndReply はコメント数がルートと返信で分かれて記録されることを検証する。
func TestRecordComment_SplitsRootAndReply(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordComment(false)
	c.RecordComment(true)
	c.RecordComment(true)

	mf := gatherFamily(t, reg, "gundem_comments_total")
	counts := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "type")] = m.GetCounter().GetValue()
	}
	if counts["root"] != 1 {
		t.Errorf("comments_total{type=root} = %v, want 1", counts["root"])
	}
	if counts["reply"] != 2 {
		t.Errorf("comments_total{type=reply} = %v, want 2", counts["reply"])
	}
}

// TestRecordNotifications_AddsCount は配信数が加算されることを検証する。
func TestRecordNotifications_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotifications("yeni_haber", 3)
	c.RecordNotifications("yeni_haber", 2)

	mf := gatherFamily(t, reg, "gundem_notifications_delivered_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 5 {
		t.Errorf("notifications_delivered_total = %v, want 5", got)
	}
	if got := labelValue(mf.GetMetric()[0], "kind"); got != "yeni_haber" {
		t.Errorf("kind label = %q, want %q", got, "yeni_haber")
	}
}

// TestRecordToggle_LabelsState は切り替え結果がon/offで記録されることを検証する。
func TestRecordToggle_LabelsState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordToggle("like", true)
	c.RecordToggle("like", false)
	c.RecordToggle("follow", true)

	mf := gatherFamily(t, reg, "gundem_toggles_total")
	if len(mf.GetMetric()) != 3 {
		t.Fatalf("expected 3 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		if m.GetCounter().GetValue() != 1 {
			t.Errorf("toggles_total{kind=%s,state=%s} = %v, want 1",
				labelValue(m, "kind"), labelValue(m, "state"), m.GetCounter().GetValue())
		}
	}
}

// TestRecordVote_IncrementsCounter は投票カウンタが増加することを検証する。
func TestRecordVote_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVote()
	c.RecordVote()

	mf := gatherFamily(t, reg, "gundem_poll_votes_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("poll_votes_total = %v, want 2", got)
	}
}

// TestRecordPublish_SplitsReshare は再共有が別ラベルで記録されることを検証する。
func TestRecordPublish_SplitsReshare(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublish(true)

	mf := gatherFamily(t, reg, "gundem_articles_published_total")
	if got := labelValue(mf.GetMetric()[0], "type"); got != "reshare" {
		t.Errorf("type label = %q, want %q", got, "reshare")
	}
}

// TestRecordImport_AddsInserted は取り込み件数と失敗が記録されることを検証する。
func TestRecordImport_AddsInserted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImport("NTV", 4)
	c.RecordImport("BBC", 1)
	c.RecordImportFailure("BBC", "timeout")

	mf := gatherFamily(t, reg, "gundem_articles_imported_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 5 {
		t.Errorf("articles_imported_total = %v, want 5", got)
	}

	mf = gatherFamily(t, reg, "gundem_import_fail_total")
	if got := labelValue(mf.GetMetric()[0], "reason"); got != "timeout" {
		t.Errorf("reason label = %q, want %q", got, "timeout")
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	mf := gatherFamily(t, reg, "gundem_http_status_total")
	statusCounts := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		statusCounts[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if statusCounts["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", statusCounts["200"])
	}
	if statusCounts["404"] != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", statusCounts["404"])
	}
}

// TestRecordSitemap_SetsGauge はサイトマップURL数のゲージが上書きされることを検証する。
func TestRecordSitemap_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSitemap(120)
	c.RecordSitemap(80)

	mf := gatherFamily(t, reg, "gundem_sitemap_urls")
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 80 {
		t.Errorf("sitemap_urls = %v, want 80", got)
	}
}

// TestObserveSave_RecordsLatencyAndFailure は保存レイテンシと失敗数が記録されることを検証する。
func TestObserveSave_RecordsLatencyAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveSave("haberler", 5*time.Millisecond, nil)
	c.ObserveSave("haberler", 7*time.Millisecond, errors.New("disk full"))

	mf := gatherFamily(t, reg, "gundem_storage_save_seconds")
	if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("storage_save_seconds sample count = %d, want 2", got)
	}

	mf = gatherFamily(t, reg, "gundem_storage_save_fail_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("storage_save_fail_total = %v, want 1", got)
	}
	if got := labelValue(mf.GetMetric()[0], "collection"); got != "haberler" {
		t.Errorf("collection label = %q, want %q", got, "haberler")
	}
}

// TestStatusMiddleware_RecordsStatus はミドルウェアがレスポンスのステータスを記録することを検証する。
func TestStatusMiddleware_RecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := NewStatusMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	mf := gatherFamily(t, reg, "gundem_http_status_total")
	if got := labelValue(mf.GetMetric()[0], "status_code"); got != "418" {
		t.Errorf("status_code label = %q, want %q", got, "418")
	}
}

// TestStatusMiddleware_DefaultsTo200 はWriteHeaderを呼ばない場合に200として記録されることを検証する。
func TestStatusMiddleware_DefaultsTo200(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := NewStatusMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	mf := gatherFamily(t, reg, "gundem_http_status_total")
	if got := labelValue(mf.GetMetric()[0], "status_code"); got != "200" {
		t.Errorf("status_code label = %q, want %q", got, "200")
	}
}

// TestNop_ImplementsCollector はNopがインターフェースを満たすことを検証する。
func TestNop_ImplementsCollector(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordComment(true)
	c.RecordNotifications("mesaj", 1)
	c.ObserveSave("yorumlar", time.Second, nil)
}
