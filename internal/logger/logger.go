// Package logger はプロセス共通のJSON構造化ログを構成する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ServiceName は全ログ行に付与されるserviceフィールドの値。
const ServiceName = "gundem"

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 全ての行に service と、空でなければ command フィールドが付く。
func Setup(w io.Writer, level slog.Level, command string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	l := slog.New(handler).With(slog.String("service", ServiceName))
	if command != "" {
		l = l.With(slog.String("command", command))
	}
	return l
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// ログレベルは環境変数 LOG_LEVEL から読む。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, command string) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, ParseLevel(os.Getenv("LOG_LEVEL")), command))
}

// ParseLevel はdebug/info/warn/errorを大文字小文字を問わず解釈する。
// 未知の値はinfoとする。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
