package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ID はコレクション内レコードの数値IDを表す。
// 過去データには整数・小数（Date.now()+Math.random()由来）・数値文字列が混在するため、
// デコード時はいずれも受け付け、エンコード時は常に整数で出力する。
type ID int64

// UnmarshalJSON は整数、小数、数値文字列、nullを受け付ける。
// 小数部は切り捨てる。
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*id = 0
			return nil
		}
		parsed, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}

	parsed, err := ParseID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID は文字列をIDに変換する。
// URLパラメータやフォーム値からのID変換にも使用する。
func ParseID(s string) (ID, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	// float64(math.MaxInt64) は 2^63 に丸められるため、2^63 以上は範囲外
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("id out of range: %q", s)
	}
	return ID(math.Trunc(f)), nil
}

// String はIDを10進文字列で返す。
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// timestampLayout はJavaScriptのtoISOString()と同じ形式。
// 既存データとの辞書順比較を保つため、常にUTC・ミリ秒3桁で出力する。
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp は時刻を保存用のISO 8601文字列に変換する。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp は保存済みの日時文字列を解析する。
// ISO 8601（ミリ秒の有無を問わない）と日付のみの形式を受け付ける。
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
