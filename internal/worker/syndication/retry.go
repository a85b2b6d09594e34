package syndication

import (
	"fmt"
	"net/http"
	"time"
)

// FetchResult はHTTPステータスコードに基づく取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultStop は配信元側の設定変更が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff は時間をおいて再試行するステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延。停止扱いの配信元もこの間隔で再確認する。
	maxBackoff = 12 * time.Hour
)

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == http.StatusOK:
		return FetchResultOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return FetchResultStop
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FetchResultStop
	case statusCode == http.StatusTooManyRequests:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// FetchError は配信元の取得・解析に失敗したことを示す。
// Reason はメトリクスのラベルに使う短い分類名。
type FetchError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Reason, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result はエラーを取得結果に分類する。HTTPステータス以外の失敗は再試行対象とする。
func (e *FetchError) Result() FetchResult {
	if e.StatusCode != 0 {
		return ClassifyHTTPStatus(e.StatusCode)
	}
	return FetchResultBackoff
}

// sourceState は配信元ごとの連続失敗回数と次回取得可能時刻。
type sourceState struct {
	consecutiveErrors int
	nextAttempt       time.Time
}

// due は取得してよい時刻かを返す。
func (s *sourceState) due(now time.Time) bool {
	return !now.Before(s.nextAttempt)
}

// applySuccess は連続失敗回数をリセットする。
func (s *sourceState) applySuccess() {
	s.consecutiveErrors = 0
	s.nextAttempt = time.Time{}
}

// applyFailure は失敗の分類に応じて次回取得時刻を遅らせる。
func (s *sourceState) applyFailure(result FetchResult, now time.Time) {
	s.consecutiveErrors++
	if result == FetchResultStop {
		s.nextAttempt = now.Add(maxBackoff)
		return
	}
	s.nextAttempt = now.Add(CalculateBackoff(s.consecutiveErrors - 1))
}
