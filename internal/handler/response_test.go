package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/savsata/gundem/internal/middleware"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/storage"
)

// withUsername はテスト用にリクエストコンテキストにユーザー名を注入するヘルパー。
func withUsername(r *http.Request, username string) *http.Request {
	return r.WithContext(middleware.ContextWithUsername(r.Context(), username))
}

// parseErrorBody はレスポンスボディから統一エラーフォーマットをパースするヘルパー。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// parseBody はレスポンスボディを汎用マップとしてパースするヘルパー。
func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", model.NewValidationError("x"), http.StatusBadRequest},
		{"self follow", model.NewSelfFollowError(), http.StatusBadRequest},
		{"unauthorized", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"blocked", model.NewUserBlockedError(), http.StatusForbidden},
		{"adult content", model.NewAdultContentError(), http.StatusForbidden},
		{"underage", model.NewUnderageError(), http.StatusForbidden},
		{"news not found", model.NewNewsNotFoundError(1), http.StatusNotFound},
		{"row not found", model.NewRowNotFoundError("haberler", 1), http.StatusNotFound},
		{"username taken", model.NewUsernameTakenError("alice"), http.StatusConflict},
		{"already voted", model.NewAlreadyVotedError(), http.StatusConflict},
		{"wrapped", fmt.Errorf("vote: %w", model.NewAlreadyVotedError()), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if body := parseErrorBody(t, w); body.Success {
				t.Error("success = true, want false")
			}
		})
	}
}

// TestHandleServiceError_StorageErrorIsGeneric500 はストレージ障害の詳細をレスポンスに含めないことを検証する。
func TestHandleServiceError_StorageErrorIsGeneric500(t *testing.T) {
	err := &storage.Error{Op: "load", Collection: "kullanicilar", Err: storage.ErrCorrupt}

	w := httptest.NewRecorder()
	handleServiceError(w, err)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := parseErrorBody(t, w)
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
	if strings.Contains(body.Message, "kullanicilar") {
		t.Errorf("message leaks internal detail: %q", body.Message)
	}
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	w := httptest.NewRecorder()

	var v map[string]any
	if decodeJSON(w, req, &v) {
		t.Fatal("decodeJSON = true, want false")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseErrorBody(t, w); body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
}

func TestRequireUsername_Anonymous(t *testing.T) {
	w := httptest.NewRecorder()
	if _, ok := requireUsername(w, httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("requireUsername = ok, want failure")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" alice, ,bob,")
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("splitList = %v, want [alice bob]", got)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}

func TestHandleServiceError_PlainErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("boom"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
