package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/storage"
)

// AdminServiceInterface は管理画面ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	List(ctx context.Context, collection string) ([]storage.Record, error)
	Get(ctx context.Context, collection string, id model.ID) (storage.Record, error)
	Create(ctx context.Context, collection string, rec storage.Record) (storage.Record, error)
	Update(ctx context.Context, collection string, id model.ID, patch storage.Record) (storage.Record, error)
	Delete(ctx context.Context, collection string, id model.ID) error
}

// AdminHandler は任意コレクションに対する管理用CRUDのHTTPハンドラー。
// リクエストボディは任意のJSONオブジェクトで、スキーマ検証は行わない。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// List はコレクションの全レコードを返す。
// GET /api/admin/{type}
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Get はレコードを1件返す。
// GET /api/admin/{type}/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "type"), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create はレコードを追加する。
// POST /api/admin/{type}
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec storage.Record
	if !decodeJSON(w, r, &rec) {
		return
	}
	if rec == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Geçersiz içerik."))
		return
	}

	created, err := h.service.Create(r.Context(), chi.URLParam(r, "type"), rec)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"data": created})
}

// Update はレコードにボディのキーを浅くマージする。
// PUT /api/admin/{type}/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var patch storage.Record
	if !decodeJSON(w, r, &patch) {
		return
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "type"), id, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"message": "Güncellendi", "data": updated})
}

// Delete はレコードを削除する。
// DELETE /api/admin/{type}/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "type"), id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"message": "Silindi"})
}
