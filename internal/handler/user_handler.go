package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/notification"
	"github.com/savsata/gundem/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, username string) (*model.PublicUser, error)
	Stats(ctx context.Context, username string) (*user.Stats, error)
	History(ctx context.Context, username string) (*user.History, error)
	SavedNews(ctx context.Context, username string) ([]model.Article, error)
	Search(ctx context.Context, query string) ([]model.UserSummary, error)
	ListByNames(ctx context.Context, names []string) ([]model.UserSummary, error)
	UpdateProfile(ctx context.Context, username string, in user.ProfileUpdate) error
	UpdateAvatar(ctx context.Context, username, avatarURL string) error
	ToggleFollow(ctx context.Context, follower, target string) (*user.FollowResult, error)
	ToggleSave(ctx context.Context, username string, newsID model.ID) (*user.SaveResult, error)
}

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, username string) ([]model.Notification, error)
	Clear(ctx context.Context, username string) error
}

// UserHandler はユーザー・フォロー・通知関連のHTTPハンドラー。
type UserHandler struct {
	service       UserServiceInterface
	notifications NotificationServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, notifications NotificationServiceInterface) *UserHandler {
	return &UserHandler{service: service, notifications: notifications}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。省略した項目は変更しない。
type updateProfileRequest struct {
	Bio         *string           `json:"bio"`
	AvatarURL   *string           `json:"avatarUrl"`
	SocialLinks map[string]string `json:"socialLinks"`
}

type avatarRequest struct {
	AvatarURL string `json:"avatarUrl"`
}

type followRequest struct {
	Following string `json:"following"`
}

// newsIDRequest は記事IDのみを持つリクエストボディ（いいね・保存）。
type newsIDRequest struct {
	NewsID model.ID `json:"newsId"`
}

// Profile はユーザーの公開プロフィールを返す。
// GET /api/user/profile/{username}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Stats はフォロワー数等の集計値を返す。
// GET /api/user/stats/{username}
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"stats": stats})
}

// History はいいねした記事とコメント履歴を返す。
// GET /api/user/history/{username}
func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// SavedNews は保存した記事の一覧を返す。
// GET /api/user/saved/{username}
func (h *UserHandler) SavedNews(w http.ResponseWriter, r *http.Request) {
	saved, err := h.service.SavedNews(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"savedNews": saved})
}

// Search はユーザー名で検索する。
// GET /api/users/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// List はカンマ区切りで指定されたユーザーの概要を返す。
// GET /api/users/list?usernames=a,b
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	names := splitList(r.URL.Query().Get("usernames"))
	if len(names) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"users": []model.UserSummary{}})
		return
	}

	users, err := h.service.ListByNames(r.Context(), names)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// UpdateProfile はログインユーザーのプロフィールを更新する。
// PUT /api/user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdateProfile(r.Context(), username, user.ProfileUpdate{
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
		SocialLinks: req.SocialLinks,
	}); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// UpdateAvatar はログインユーザーのプロフィール画像を更新する。
// POST /api/user/avatar
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req avatarRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdateAvatar(r.Context(), username, req.AvatarURL); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// ToggleFollow はフォロー状態を切り替える。
// POST /api/follow
func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req followRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Following == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Takip edilecek kullanıcı gerekli."))
		return
	}

	result, err := h.service.ToggleFollow(r.Context(), username, req.Following)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{
		"isFollowing":    result.IsFollowing,
		"followingList":  result.FollowingList,
		"followerCount":  result.FollowerCount,
		"followingCount": result.FollowingCount,
	})
}

// ToggleSave は記事の保存状態を切り替える。
// POST /api/user/saved
func (h *UserHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req newsIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NewsID == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Haber kimliği gerekli."))
		return
	}

	result, err := h.service.ToggleSave(r.Context(), username, req.NewsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{
		"isSaved":       result.IsSaved,
		"savedArticles": result.SavedArticles,
	})
}

// Notifications はログインユーザーの通知一覧と未読件数を返す。
// GET /api/notifications
func (h *UserHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	list, err := h.notifications.List(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{
		"notifications": list,
		"unread":        notification.UnreadCount(list),
	})
}

// ClearNotifications はログインユーザーの通知をすべて既読にする。
// POST /api/notifications/clear
func (h *UserHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	if err := h.notifications.Clear(r.Context(), username); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, nil)
}
