package handler

import (
	"context"
	"net/http"

	"github.com/savsata/gundem/internal/comment"
	"github.com/savsata/gundem/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	ListFlat(ctx context.Context, newsID model.ID) ([]model.Comment, error)
	ListThread(ctx context.Context, newsID model.ID) ([]*model.ThreadNode, error)
	AddComment(ctx context.Context, in comment.AddInput) (*model.Comment, error)
}

// CommentHandler はコメント関連のHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// addCommentRequest はコメント投稿リクエストのボディ。
type addCommentRequest struct {
	NewsID   model.ID  `json:"newsId"`
	Content  string    `json:"content"`
	ParentID *model.ID `json:"parentId"`
}

// ListFlat は記事のコメントを新しい順の平坦なリストで返す。
// GET /api/comments/{newsId}
func (h *CommentHandler) ListFlat(w http.ResponseWriter, r *http.Request) {
	newsID, ok := idParam(w, r, "newsId")
	if !ok {
		return
	}

	comments, err := h.service.ListFlat(r.Context(), newsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// ListThread は記事のコメントを返信ツリーで返す。
// GET /api/comments/{newsId}/thread
func (h *CommentHandler) ListThread(w http.ResponseWriter, r *http.Request) {
	newsID, ok := idParam(w, r, "newsId")
	if !ok {
		return
	}

	roots, err := h.service.ListThread(r.Context(), newsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": roots})
}

// AddComment はログインユーザーとしてコメントを投稿する。
// POST /api/comments
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req addCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.AddComment(r.Context(), comment.AddInput{
		NewsID:   req.NewsID,
		Username: username,
		Body:     req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"comment": created})
}
