package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/savsata/gundem/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	Send(ctx context.Context, from, to, content string) (*model.Message, error)
	Thread(ctx context.Context, userA, userB string) ([]model.Message, error)
	Conversations(ctx context.Context, username string) ([]model.Conversation, error)
	MarkRead(ctx context.Context, reader, other string) (int, error)
}

// MessageHandler はダイレクトメッセージのHTTPハンドラー。
// すべての操作はセッションのユーザーを当事者とする。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

type sendMessageRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type markReadRequest struct {
	Other string `json:"other"`
}

// Send はメッセージを送信する。
// POST /api/messages/send
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.Send(r.Context(), username, req.To, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"message": msg})
}

// Thread は相手とのメッセージを古い順に返す。
// GET /api/messages/thread/{other}
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	messages, err := h.service.Thread(r.Context(), username, chi.URLParam(r, "other"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"messages": messages})
}

// Conversations は会話一覧を返す。
// GET /api/messages/conversations
func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	conversations, err := h.service.Conversations(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"conversations": conversations})
}

// MarkRead は相手から届いたメッセージを既読にする。
// POST /api/messages/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Other == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Kullanıcı gerekli."))
		return
	}

	updated, err := h.service.MarkRead(r.Context(), username, req.Other)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"updated": updated})
}
