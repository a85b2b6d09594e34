// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/savsata/gundem/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "gundem_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// usernameContextKey はリクエストコンテキストにユーザー名を格納するためのキー。
var usernameContextKey = contextKey("username")

// requestUserContextKey はロギングミドルウェアがユーザー名を受け取る箱のキー。
var requestUserContextKey = contextKey("request_user")

type requestUser struct {
	name string
}

func withRequestUser(ctx context.Context, slot *requestUser) context.Context {
	return context.WithValue(ctx, requestUserContextKey, slot)
}

// SessionFinder はセッショントークンからユーザー名を引くインターフェース。
// 無効または期限切れのトークンでは空文字列を返す。
type SessionFinder interface {
	FindSession(ctx context.Context, token string) (string, error)
}

// NewSessionMiddleware はCookieのセッショントークンを検証し、ユーザー名をコンテキストに注入する。
// 未認証リクエストには401を返す。
// 外側の NewOptionalSessionMiddleware で解決済みのリクエストはセッションを再検索しない。
func NewSessionMiddleware(finder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := UsernameFromContext(r.Context()); err == nil {
				next.ServeHTTP(w, r)
				return
			}
			username := resolveSession(r, finder)
			if username == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUsername(r.Context(), username)))
		})
	}
}

// NewOptionalSessionMiddleware は有効なセッションがあればユーザー名を注入し、無ければそのまま通す。
// 匿名でも閲覧できるが、ログイン状態で結果が変わるルートで使用する。
func NewOptionalSessionMiddleware(finder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username := resolveSession(r, finder); username != "" {
				r = r.WithContext(ContextWithUsername(r.Context(), username))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveSession(r *http.Request, finder SessionFinder) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	username, err := finder.FindSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session", slog.String("error", err.Error()))
		return ""
	}
	return username
}

// UsernameFromContext はリクエストコンテキストからユーザー名を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// ContextWithUsername はコンテキストにユーザー名を注入する。
// 外側にロギングミドルウェアがある場合は、そのログにもユーザー名が出力される。
func ContextWithUsername(ctx context.Context, username string) context.Context {
	if slot, ok := ctx.Value(requestUserContextKey).(*requestUser); ok {
		slot.name = username
	}
	return context.WithValue(ctx, usernameContextKey, username)
}
