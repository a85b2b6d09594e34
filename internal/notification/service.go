// Package notification はユーザーレコード内の通知一覧への配信と既読化を提供する。
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

// Payload は通知の種類以外の内容。
type Payload struct {
	Actor  string
	NewsID *model.ID
	Title  string
}

// Deliver はトランザクション内で読み込み済みのユーザー一覧に通知を追加する。
//
// 通知は各対象ユーザーの一覧の先頭に未読として追加される。
// 存在しないユーザーと重複した宛先はスキップし、実際に配信した件数を返す。
// 呼び出し側は users を repository.Users.Save で保存する必要がある。
func Deliver(tx *storage.Tx, users []model.User, kind model.NotificationKind, targets []string, p Payload, now time.Time) int {
	floor := maxNotificationID(users)
	date := model.FormatTimestamp(now)

	seen := make(map[string]bool, len(targets))
	delivered := 0
	for _, target := range targets {
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true

		i := repository.FindUser(users, target)
		if i < 0 {
			continue
		}

		n := model.Notification{
			ID:     tx.NewID(repository.NotificationNamespace, floor),
			Kind:   kind,
			Actor:  p.Actor,
			NewsID: p.NewsID,
			Title:  p.Title,
			Date:   date,
			Read:   false,
		}
		users[i].Notifications = append([]model.Notification{n}, users[i].Notifications...)
		delivered++
	}
	return delivered
}

func maxNotificationID(users []model.User) model.ID {
	var max model.ID
	for i := range users {
		for _, n := range users[i].Notifications {
			if n.ID > max {
				max = n.ID
			}
		}
	}
	return max
}

// Service は通知のサービス層。
type Service struct {
	store   *storage.Store
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *storage.Store, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{store: store, metrics: m, now: time.Now}
}

// Notify は1人のユーザーに通知を配信する。対象ユーザーが存在しない場合はNotFoundを返す。
func (s *Service) Notify(ctx context.Context, kind model.NotificationKind, target string, p Payload) error {
	err := s.store.Update(ctx, []string{repository.Users.Name()}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		if repository.FindUser(users, target) < 0 {
			return model.NewUserNotFoundError(target)
		}
		Deliver(tx, users, kind, []string{target}, p, s.now())
		return repository.Users.Save(tx, users)
	})
	if err != nil {
		return err
	}
	s.metrics.RecordNotifications(string(kind), 1)
	return nil
}

// NotifyMany は複数ユーザーに同じ通知を配信する。
// ユーザー一覧の読み込みと保存はそれぞれ1回だけ行う。存在しない宛先は無視する。
func (s *Service) NotifyMany(ctx context.Context, kind model.NotificationKind, targets []string, p Payload) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}

	var delivered int
	err := s.store.Update(ctx, []string{repository.Users.Name()}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		delivered = Deliver(tx, users, kind, targets, p, s.now())
		if delivered == 0 {
			return nil
		}
		return repository.Users.Save(tx, users)
	})
	if err != nil {
		return 0, err
	}
	s.metrics.RecordNotifications(string(kind), delivered)
	return delivered, nil
}

// Clear はユーザーの全通知を既読にする。
func (s *Service) Clear(ctx context.Context, username string) error {
	return s.store.Update(ctx, []string{repository.Users.Name()}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindUser(users, username)
		if i < 0 {
			return model.NewUserNotFoundError(username)
		}
		for j := range users[i].Notifications {
			users[i].Notifications[j].Read = true
		}
		return repository.Users.Save(tx, users)
	})
}

// List はユーザーの通知一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, username string) ([]model.Notification, error) {
	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	i := repository.FindUser(users, username)
	if i < 0 {
		return nil, model.NewUserNotFoundError(username)
	}
	if users[i].Notifications == nil {
		return []model.Notification{}, nil
	}
	return users[i].Notifications, nil
}

// UnreadCount は未読通知の件数を返す。
func UnreadCount(notifications []model.Notification) int {
	n := 0
	for _, x := range notifications {
		if !x.Read {
			n++
		}
	}
	return n
}
