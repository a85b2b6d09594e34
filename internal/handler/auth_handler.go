package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/savsata/gundem/internal/auth"
	"github.com/savsata/gundem/internal/middleware"
	"github.com/savsata/gundem/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.SelfUser, error)
	Login(ctx context.Context, username, password string) (*model.Session, *model.SelfUser, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, username string) (*model.SelfUser, error)
	Verify(ctx context.Context, username string) (*model.SelfUser, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は会員登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// registerRequest は会員登録リクエストのボディ。
type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	Birthdate string `json:"birthdate"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register は会員登録を処理する。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		Birthdate: req.Birthdate,
	}); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]any{"message": "Kayıt başarılı."})
}

// Login はユーザー名とパスワードを照合し、セッションCookieを発行する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeSuccess(w, map[string]any{"user": user})
}

// Logout はセッションを破棄する。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeSuccess(w, nil)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, map[string]any{"user": user})
}

// Verify はユーザーの存在を確認し最新の情報を返す。
// 本人のセッションであれば本人向けの情報を、それ以外は公開情報のみを返す。
// GET /api/user/verify/{username}
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.Verify(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if viewerFromContext(r) == user.Username {
		writeSuccess(w, map[string]any{"user": user})
		return
	}
	writeSuccess(w, map[string]any{"user": user.PublicUser})
}
