package handler

import (
	"context"
	"net/http"

	"github.com/savsata/gundem/internal/model"
)

// PollServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type PollServiceInterface interface {
	GetByNews(ctx context.Context, newsID model.ID) (*model.Poll, error)
	Vote(ctx context.Context, pollID, optionID model.ID, username string) (*model.Poll, error)
}

// PollHandler は記事の投票に関するHTTPハンドラー。
type PollHandler struct {
	service PollServiceInterface
}

// NewPollHandler はPollHandlerを生成する。
func NewPollHandler(service PollServiceInterface) *PollHandler {
	return &PollHandler{service: service}
}

type voteRequest struct {
	PollID   model.ID `json:"pollId"`
	OptionID model.ID `json:"optionId"`
}

// GetByNews は記事に紐づく投票を返す。投票が無い場合は success=false と poll=null を返す。
// GET /api/polls/{newsId}
func (h *PollHandler) GetByNews(w http.ResponseWriter, r *http.Request) {
	newsID, ok := idParam(w, r, "newsId")
	if !ok {
		return
	}

	poll, err := h.service.GetByNews(r.Context(), newsID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": poll != nil, "poll": poll})
}

// Vote はログインユーザーとして投票する。
// POST /api/polls/vote
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	poll, err := h.service.Vote(r.Context(), req.PollID, req.OptionID, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"poll": poll})
}
