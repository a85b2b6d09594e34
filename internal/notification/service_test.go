package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

const seedUsers = `[
	{"id": 1, "kullanici_adi": "alice", "bildirimler": [{"id": 900, "tip": "mesaj", "yazar": "carol", "tarih": "2024-01-01T00:00:00.000Z", "okundu": false}]},
	{"id": 2, "kullanici_adi": "bob"},
	{"id": 3, "kullanici_adi": "carol"}
]`

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	b := storage.NewMemoryBackend()
	b.Set("kullanicilar", []byte(seedUsers))
	store := storage.NewStore(b)
	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func loadUser(t *testing.T, store *storage.Store, username string) model.User {
	t.Helper()
	users, err := repository.Users.List(context.Background(), store)
	if err != nil {
		t.Fatalf("failed to list users: %v", err)
	}
	i := repository.FindUser(users, username)
	if i < 0 {
		t.Fatalf("user %q not found", username)
	}
	return users[i]
}

// TestNotify_PrependsUnread は通知が未読として先頭に追加されることを検証する。
func TestNotify_PrependsUnread(t *testing.T) {
	svc, store := newTestService(t)
	newsID := model.ID(42)

	err := svc.Notify(context.Background(), model.NotificationCommentReply, "alice",
		Payload{Actor: "bob", NewsID: &newsID})
	if err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	alice := loadUser(t, store, "alice")
	if len(alice.Notifications) != 2 {
		t.Fatalf("len(bildirimler) = %d, want 2", len(alice.Notifications))
	}
	n := alice.Notifications[0]
	if n.Kind != model.NotificationCommentReply {
		t.Errorf("tip = %q, want %q", n.Kind, model.NotificationCommentReply)
	}
	if n.Actor != "bob" {
		t.Errorf("yazar = %q, want %q", n.Actor, "bob")
	}
	if n.Read {
		t.Error("new notification should be unread")
	}
	if n.NewsID == nil || *n.NewsID != 42 {
		t.Errorf("haber_id = %v, want 42", n.NewsID)
	}
	if n.ID <= 900 {
		t.Errorf("id = %d, want greater than existing 900", n.ID)
	}
	if n.Date != "2024-05-01T12:00:00.000Z" {
		t.Errorf("tarih = %q, want %q", n.Date, "2024-05-01T12:00:00.000Z")
	}
}

// TestNotify_MissingTargetIsNotFound は存在しないユーザーへの通知がNotFoundになることを検証する。
func TestNotify_MissingTargetIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Notify(context.Background(), model.NotificationDirectMessage, "mallory", Payload{Actor: "bob"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

// TestNotifyMany_SkipsMissingAndDuplicates は存在しない宛先と重複を除いて配信することを検証する。
func TestNotifyMany_SkipsMissingAndDuplicates(t *testing.T) {
	svc, store := newTestService(t)
	newsID := model.ID(7)

	n, err := svc.NotifyMany(context.Background(), model.NotificationNewArticle,
		[]string{"bob", "ghost", "carol", "bob"},
		Payload{Actor: "alice", NewsID: &newsID, Title: "Yeni gelişme"})
	if err != nil {
		t.Fatalf("NotifyMany returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}

	bob := loadUser(t, store, "bob")
	carol := loadUser(t, store, "carol")
	if len(bob.Notifications) != 1 || len(carol.Notifications) != 1 {
		t.Fatalf("bob=%d carol=%d notifications, want 1 each", len(bob.Notifications), len(carol.Notifications))
	}
	if bob.Notifications[0].Title != "Yeni gelişme" {
		t.Errorf("baslik = %q, want %q", bob.Notifications[0].Title, "Yeni gelişme")
	}
	if bob.Notifications[0].ID == carol.Notifications[0].ID {
		t.Errorf("notification ids should be unique, both %d", bob.Notifications[0].ID)
	}
}

// TestNotifyMany_SingleSave はNotifyManyが保存を1回だけ行うことを検証する。
func TestNotifyMany_SingleSave(t *testing.T) {
	b := storage.NewMemoryBackend()
	b.Set("kullanicilar", []byte(seedUsers))
	saves := 0
	b.SaveHook = func(name string) error {
		saves++
		return nil
	}
	svc := NewService(storage.NewStore(b), nil)

	if _, err := svc.NotifyMany(context.Background(), model.NotificationNewArticle,
		[]string{"alice", "bob", "carol"}, Payload{Actor: "dave"}); err != nil {
		t.Fatalf("NotifyMany returned error: %v", err)
	}
	if saves != 1 {
		t.Errorf("saves = %d, want 1", saves)
	}
}

// TestNotifyMany_NoRecipientsSavesNothing は配信先が無い場合に保存しないことを検証する。
func TestNotifyMany_NoRecipientsSavesNothing(t *testing.T) {
	b := storage.NewMemoryBackend()
	b.Set("kullanicilar", []byte(seedUsers))
	saves := 0
	b.SaveHook = func(name string) error {
		saves++
		return nil
	}
	svc := NewService(storage.NewStore(b), nil)

	n, err := svc.NotifyMany(context.Background(), model.NotificationNewArticle, []string{"ghost"}, Payload{})
	if err != nil {
		t.Fatalf("NotifyMany returned error: %v", err)
	}
	if n != 0 || saves != 0 {
		t.Errorf("delivered=%d saves=%d, want 0 and 0", n, saves)
	}
}

// TestClear_MarksAllRead は全通知が既読になることを検証する。
func TestClear_MarksAllRead(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Notify(ctx, model.NotificationDirectMessage, "alice", Payload{Actor: "bob"}); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if err := svc.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	alice := loadUser(t, store, "alice")
	if got := UnreadCount(alice.Notifications); got != 0 {
		t.Errorf("unread = %d, want 0", got)
	}
	if len(alice.Notifications) != 2 {
		t.Errorf("len(bildirimler) = %d, want 2 (clear must not delete)", len(alice.Notifications))
	}
}

// TestList_EmptyForUserWithoutNotifications は通知が無いユーザーに空配列を返すことを検証する。
func TestList_EmptyForUserWithoutNotifications(t *testing.T) {
	svc, _ := newTestService(t)

	list, err := svc.List(context.Background(), "bob")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("List = %v, want empty slice", list)
	}
}
