package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/news"
)

// NewsServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	List(ctx context.Context, q news.ListQuery) (*model.ArticlePage, error)
	Get(ctx context.Context, id model.ID, viewer string) (*model.ArticleView, error)
	IncrementView(ctx context.Context, id model.ID) (int, error)
	Publish(ctx context.Context, in news.PublishInput) (*model.Article, error)
	DeleteOwn(ctx context.Context, username string, id model.ID) error
	ListByUser(ctx context.Context, username string) ([]model.ArticleView, error)
	Search(ctx context.Context, query, viewer string) ([]model.ArticleView, error)
	Categories(ctx context.Context) ([]model.Category, error)
	ToggleLike(ctx context.Context, username string, newsID model.ID) (*news.LikeResult, error)
	Normalize(ctx context.Context) (*news.NormalizeResult, error)
}

// NewsHandler は記事関連のHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service NewsServiceInterface) *NewsHandler {
	return &NewsHandler{service: service}
}

// publishRequest は記事公開リクエストのボディ。キー名は既存フロントエンドに合わせている。
type publishRequest struct {
	Title          string    `json:"baslik"`
	Summary        string    `json:"ozet"`
	BodyHTML       string    `json:"icerik"`
	ImageURL       string    `json:"resim_url"`
	Category       string    `json:"kategori"`
	AdultOnly      bool      `json:"adult_only"`
	OriginalNewsID *model.ID `json:"originalNewsId"`
}

// Categories はカテゴリ一覧を返す。
// GET /api/kategoriler
func (h *NewsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// List は記事一覧をページ単位で返す。
// GET /api/haberler?page=1&limit=5&category=Spor&following=a,b
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// 数値でない値はサービス側の既定値に任せる
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.service.List(r.Context(), news.ListQuery{
		Page:      page,
		Limit:     limit,
		Category:  q.Get("category"),
		Following: splitList(q.Get("following")),
		Viewer:    viewerFromContext(r),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Get は記事詳細を返す。
// GET /api/haberler/{id}
func (h *NewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	article, err := h.service.Get(r.Context(), id, viewerFromContext(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": article})
}

// IncrementView は閲覧数を1増やす。
// POST /api/haberler/{id}/view
func (h *NewsHandler) IncrementView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	count, err := h.service.IncrementView(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"newCount": count})
}

// Search は記事を全文検索する。
// GET /api/search?q=
func (h *NewsHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), viewerFromContext(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ListByUser はユーザーが公開した記事を返す。
// GET /api/user/news/{username}
func (h *NewsHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"data": list})
}

// Publish はログインユーザーとして記事を公開する。
// POST /api/user/news
func (h *NewsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req publishRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Publish(r.Context(), news.PublishInput{
		Username:       username,
		Title:          req.Title,
		Summary:        req.Summary,
		BodyHTML:       req.BodyHTML,
		ImageURL:       req.ImageURL,
		Category:       req.Category,
		AdultOnly:      req.AdultOnly,
		OriginalNewsID: req.OriginalNewsID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"news": created})
}

// DeleteOwn はログインユーザーが公開した記事を削除する。
// DELETE /api/user/news/{id}
func (h *NewsHandler) DeleteOwn(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteOwn(r.Context(), username, id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// ToggleLike はいいね状態を切り替える。
// POST /api/like
func (h *NewsHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.ToggleLike(r.Context(), username, req.NewsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{
		"isLiked":  result.IsLiked,
		"newCount": result.NewCount,
	})
}

// Normalize はデータセット全体を正規化する。
// POST /api/normalize
func (h *NewsHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Normalize(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"normalized": result})
}
