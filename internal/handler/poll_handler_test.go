package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/savsata/gundem/internal/model"
)

// mockPollService はPollServiceInterfaceのモック実装。
type mockPollService struct {
	getByNewsFn func(ctx context.Context, newsID model.ID) (*model.Poll, error)
	voteFn      func(ctx context.Context, pollID, optionID model.ID, username string) (*model.Poll, error)
}

func (m *mockPollService) GetByNews(ctx context.Context, newsID model.ID) (*model.Poll, error) {
	return m.getByNewsFn(ctx, newsID)
}

func (m *mockPollService) Vote(ctx context.Context, pollID, optionID model.ID, username string) (*model.Poll, error) {
	return m.voteFn(ctx, pollID, optionID, username)
}

func TestPollHandler_GetByNews(t *testing.T) {
	svc := &mockPollService{
		getByNewsFn: func(_ context.Context, newsID model.ID) (*model.Poll, error) {
			if newsID == 1 {
				return &model.Poll{ID: 3, NewsID: 1, Question: "Hangisi?"}, nil
			}
			return nil, nil
		},
	}
	h := NewPollHandler(svc)

	tests := []struct {
		name        string
		newsID      string
		wantSuccess bool
	}{
		{"poll exists", "1", true},
		{"no poll", "2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/polls/"+tt.newsID, nil), map[string]string{"newsId": tt.newsID})
			w := httptest.NewRecorder()
			h.GetByNews(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			resp := parseBody(t, w)
			if resp["success"] != tt.wantSuccess {
				t.Errorf("success = %v, want %v", resp["success"], tt.wantSuccess)
			}
			if !tt.wantSuccess && resp["poll"] != nil {
				t.Errorf("poll = %v, want null", resp["poll"])
			}
		})
	}
}

func TestPollHandler_Vote(t *testing.T) {
	svc := &mockPollService{
		voteFn: func(_ context.Context, pollID, optionID model.ID, username string) (*model.Poll, error) {
			if username == "ayse" {
				return nil, model.NewAlreadyVotedError()
			}
			return &model.Poll{ID: pollID, Voters: []string{username}}, nil
		},
	}
	h := NewPollHandler(svc)

	tests := []struct {
		name     string
		username string
		wantCode int
	}{
		{"first vote", "mehmet", http.StatusOK},
		{"already voted", "ayse", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUsername(httptest.NewRequest(http.MethodPost, "/api/polls/vote", strings.NewReader(`{"pollId":3,"optionId":1}`)), tt.username)
			w := httptest.NewRecorder()
			h.Vote(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
