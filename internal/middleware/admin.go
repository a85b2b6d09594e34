package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/savsata/gundem/internal/model"
)

// AdminChecker はユーザーが管理者かを判定するインターフェース。
type AdminChecker interface {
	IsAdmin(ctx context.Context, username string) (bool, error)
}

// NewAdminMiddleware は管理者以外のリクエストに403を返すミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func NewAdminMiddleware(checker AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := UsernameFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ok, err := checker.IsAdmin(r.Context(), username)
			if err != nil {
				slog.Error("failed to check admin role",
					slog.String("username", username),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if !ok {
				slog.Warn("admin access denied",
					slog.String("username", username),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError("Bu işlem için yönetici yetkisi gerekir."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
