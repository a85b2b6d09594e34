package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/savsata/gundem/internal/model"
)

// 直近アクセスログの既定件数と上限。
const (
	defaultRecentVisits = 50
	maxRecentVisits     = 1000
)

// VisitServiceInterface はアクセスログ閲覧に必要なサービスインターフェース。
type VisitServiceInterface interface {
	Recent(ctx context.Context, n int) ([]model.Visit, error)
}

// VisitHandler は管理者向けのアクセスログ閲覧ハンドラー。
type VisitHandler struct {
	service VisitServiceInterface
}

// NewVisitHandler はVisitHandlerを生成する。
func NewVisitHandler(service VisitServiceInterface) *VisitHandler {
	return &VisitHandler{service: service}
}

// Recent は新しい順にアクセスログを返す。
// GET /api/visits/recent?limit=50
func (h *VisitHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultRecentVisits
	}
	limit = min(limit, maxRecentVisits)

	visits, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visits": visits})
}
