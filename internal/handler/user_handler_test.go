package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/user"
)

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	profileFn       func(ctx context.Context, username string) (*model.PublicUser, error)
	statsFn         func(ctx context.Context, username string) (*user.Stats, error)
	historyFn       func(ctx context.Context, username string) (*user.History, error)
	savedNewsFn     func(ctx context.Context, username string) ([]model.Article, error)
	searchFn        func(ctx context.Context, query string) ([]model.UserSummary, error)
	listByNamesFn   func(ctx context.Context, names []string) ([]model.UserSummary, error)
	updateProfileFn func(ctx context.Context, username string, in user.ProfileUpdate) error
	updateAvatarFn  func(ctx context.Context, username, avatarURL string) error
	toggleFollowFn  func(ctx context.Context, follower, target string) (*user.FollowResult, error)
	toggleSaveFn    func(ctx context.Context, username string, newsID model.ID) (*user.SaveResult, error)
}

func (m *mockUserService) Profile(ctx context.Context, username string) (*model.PublicUser, error) {
	return m.profileFn(ctx, username)
}

func (m *mockUserService) Stats(ctx context.Context, username string) (*user.Stats, error) {
	return m.statsFn(ctx, username)
}

func (m *mockUserService) History(ctx context.Context, username string) (*user.History, error) {
	return m.historyFn(ctx, username)
}

func (m *mockUserService) SavedNews(ctx context.Context, username string) ([]model.Article, error) {
	return m.savedNewsFn(ctx, username)
}

func (m *mockUserService) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	return m.searchFn(ctx, query)
}

func (m *mockUserService) ListByNames(ctx context.Context, names []string) ([]model.UserSummary, error) {
	return m.listByNamesFn(ctx, names)
}

func (m *mockUserService) UpdateProfile(ctx context.Context, username string, in user.ProfileUpdate) error {
	return m.updateProfileFn(ctx, username, in)
}

func (m *mockUserService) UpdateAvatar(ctx context.Context, username, avatarURL string) error {
	return m.updateAvatarFn(ctx, username, avatarURL)
}

func (m *mockUserService) ToggleFollow(ctx context.Context, follower, target string) (*user.FollowResult, error) {
	return m.toggleFollowFn(ctx, follower, target)
}

func (m *mockUserService) ToggleSave(ctx context.Context, username string, newsID model.ID) (*user.SaveResult, error) {
	return m.toggleSaveFn(ctx, username, newsID)
}

// mockNotificationService はNotificationServiceInterfaceのモック実装。
type mockNotificationService struct {
	listFn  func(ctx context.Context, username string) ([]model.Notification, error)
	clearFn func(ctx context.Context, username string) error
}

func (m *mockNotificationService) List(ctx context.Context, username string) ([]model.Notification, error) {
	return m.listFn(ctx, username)
}

func (m *mockNotificationService) Clear(ctx context.Context, username string) error {
	return m.clearFn(ctx, username)
}

func TestUserHandler_Profile_NotFound(t *testing.T) {
	svc := &mockUserService{
		profileFn: func(_ context.Context, username string) (*model.PublicUser, error) {
			return nil, model.NewUserNotFoundError(username)
		},
	}
	h := NewUserHandler(svc, nil)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/user/profile/yok", nil), map[string]string{"username": "yok"})
	w := httptest.NewRecorder()
	h.Profile(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := parseErrorBody(t, w); body.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUserNotFound)
	}
}

func TestUserHandler_Stats(t *testing.T) {
	svc := &mockUserService{
		statsFn: func(_ context.Context, username string) (*user.Stats, error) {
			return &user.Stats{FollowerCount: 3, FollowingCount: 1}, nil
		},
	}
	h := NewUserHandler(svc, nil)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/user/stats/ayse", nil), map[string]string{"username": "ayse"})
	w := httptest.NewRecorder()
	h.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	stats := parseBody(t, w)["stats"].(map[string]any)
	if stats["followerCount"] != float64(3) {
		t.Errorf("followerCount = %v, want 3", stats["followerCount"])
	}
}

func TestUserHandler_List_EmptyQueryReturnsEmptyArray(t *testing.T) {
	svc := &mockUserService{
		listByNamesFn: func(context.Context, []string) ([]model.UserSummary, error) {
			t.Error("ListByNames should not be called for an empty query")
			return nil, nil
		},
	}
	h := NewUserHandler(svc, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/users/list", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"users":[]}` {
		t.Errorf("body = %s, want {\"users\":[]}", got)
	}
}

func TestUserHandler_List_SplitsUsernames(t *testing.T) {
	var got []string
	svc := &mockUserService{
		listByNamesFn: func(_ context.Context, names []string) ([]model.UserSummary, error) {
			got = names
			return []model.UserSummary{{Username: "ayse"}}, nil
		},
	}
	h := NewUserHandler(svc, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/users/list?usernames=ayse,+mehmet,", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(got) != 2 || got[0] != "ayse" || got[1] != "mehmet" {
		t.Errorf("names = %v, want [ayse mehmet]", got)
	}
}

func TestUserHandler_UpdateProfile_PartialUpdate(t *testing.T) {
	var got user.ProfileUpdate
	svc := &mockUserService{
		updateProfileFn: func(_ context.Context, username string, in user.ProfileUpdate) error {
			if username != "ayse" {
				t.Errorf("username = %q, want ayse", username)
			}
			got = in
			return nil
		},
	}
	h := NewUserHandler(svc, nil)

	req := withUsername(httptest.NewRequest(http.MethodPut, "/api/user/profile", strings.NewReader(`{"bio":"Merhaba"}`)), "ayse")
	w := httptest.NewRecorder()
	h.UpdateProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Bio == nil || *got.Bio != "Merhaba" {
		t.Errorf("Bio = %v, want Merhaba", got.Bio)
	}
	if got.AvatarURL != nil {
		t.Errorf("AvatarURL = %v, want nil", *got.AvatarURL)
	}
}

func TestUserHandler_ToggleFollow(t *testing.T) {
	svc := &mockUserService{
		toggleFollowFn: func(_ context.Context, follower, target string) (*user.FollowResult, error) {
			if follower == target {
				return nil, model.NewSelfFollowError()
			}
			return &user.FollowResult{IsFollowing: true, FollowingList: []string{target}, FollowerCount: 1, FollowingCount: 1}, nil
		},
	}
	h := NewUserHandler(svc, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"follow", `{"following":"mehmet"}`, http.StatusOK},
		{"self follow", `{"following":"ayse"}`, http.StatusBadRequest},
		{"missing target", `{}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUsername(httptest.NewRequest(http.MethodPost, "/api/follow", strings.NewReader(tt.body)), "ayse")
			w := httptest.NewRecorder()
			h.ToggleFollow(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestUserHandler_ToggleFollow_RequiresLogin(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, nil)

	w := httptest.NewRecorder()
	h.ToggleFollow(w, httptest.NewRequest(http.MethodPost, "/api/follow", strings.NewReader(`{"following":"mehmet"}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestUserHandler_ToggleSave(t *testing.T) {
	svc := &mockUserService{
		toggleSaveFn: func(_ context.Context, _ string, newsID model.ID) (*user.SaveResult, error) {
			return &user.SaveResult{IsSaved: true, SavedArticles: []model.ID{newsID}}, nil
		},
	}
	h := NewUserHandler(svc, nil)

	req := withUsername(httptest.NewRequest(http.MethodPost, "/api/user/saved", strings.NewReader(`{"newsId":42}`)), "ayse")
	w := httptest.NewRecorder()
	h.ToggleSave(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := parseBody(t, w)
	if resp["isSaved"] != true {
		t.Errorf("isSaved = %v, want true", resp["isSaved"])
	}

	req = withUsername(httptest.NewRequest(http.MethodPost, "/api/user/saved", strings.NewReader(`{}`)), "ayse")
	w = httptest.NewRecorder()
	h.ToggleSave(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing newsId: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUserHandler_Notifications(t *testing.T) {
	notifications := &mockNotificationService{
		listFn: func(context.Context, string) ([]model.Notification, error) {
			return []model.Notification{
				{ID: 2, Kind: model.NotificationNewArticle, Actor: "mehmet"},
				{ID: 1, Kind: model.NotificationCommentReply, Actor: "zeynep", Read: true},
			}, nil
		},
	}
	h := NewUserHandler(&mockUserService{}, notifications)

	w := httptest.NewRecorder()
	h.Notifications(w, withUsername(httptest.NewRequest(http.MethodGet, "/api/notifications", nil), "ayse"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := parseBody(t, w)
	if resp["unread"] != float64(1) {
		t.Errorf("unread = %v, want 1", resp["unread"])
	}
	if list := resp["notifications"].([]any); len(list) != 2 {
		t.Errorf("len(notifications) = %d, want 2", len(list))
	}
}

func TestUserHandler_ClearNotifications(t *testing.T) {
	var cleared string
	notifications := &mockNotificationService{
		clearFn: func(_ context.Context, username string) error {
			cleared = username
			return nil
		},
	}
	h := NewUserHandler(&mockUserService{}, notifications)

	w := httptest.NewRecorder()
	h.ClearNotifications(w, withUsername(httptest.NewRequest(http.MethodPost, "/api/notifications/clear", nil), "ayse"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if cleared != "ayse" {
		t.Errorf("cleared = %q, want ayse", cleared)
	}
}
