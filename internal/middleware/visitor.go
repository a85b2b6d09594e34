package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/savsata/gundem/internal/model"
)

// staticAssetPattern はアクセスログに記録しない静的ファイルの拡張子。
var staticAssetPattern = regexp.MustCompile(`\.(css|js|png|jpg|jpeg|gif|ico|woff|woff2)$`)

// visitorSkipPrefix はポーリングで頻繁に呼ばれるため記録しないパス。
const visitorSkipPrefix = "/api/user/verify"

// VisitRecorder はアクセスを記録するインターフェース。
type VisitRecorder interface {
	RecordVisit(ctx context.Context, v model.Visit) error
}

// NewVisitorLogMiddleware はリクエストをアクセスログに記録するミドルウェアを返す。
// 記録に失敗してもリクエストは継続する。
func NewVisitorLogMiddleware(recorder VisitRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldRecordVisit(r) {
				v := model.Visit{
					IP:        ClientIP(r),
					URL:       r.URL.RequestURI(),
					Method:    r.Method,
					UserAgent: r.UserAgent(),
				}
				if err := recorder.RecordVisit(r.Context(), v); err != nil {
					slog.Warn("failed to record visit",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func shouldRecordVisit(r *http.Request) bool {
	if staticAssetPattern.MatchString(r.URL.Path) {
		return false
	}
	return !strings.HasPrefix(r.URL.Path, visitorSkipPrefix)
}

// ClientIP はX-Forwarded-Forの先頭、無ければ接続元アドレスを返す。
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
