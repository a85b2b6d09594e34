// Package message はユーザー間のダイレクトメッセージを提供する。
package message

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/notification"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

const maxContentLength = 5000

// Service はダイレクトメッセージのサービス層。
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

// Send はメッセージを送信し、受信者に mesaj 通知を配信する。
// 送信者・受信者のどちらかが存在しないかブロックされている場合は拒否する。
func (s *Service) Send(ctx context.Context, from, to, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if from == "" || to == "" || content == "" {
		return nil, model.NewValidationError("Geçersiz istek.")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, model.NewValidationError(fmt.Sprintf("Mesaj en fazla %d karakter olabilir.", maxContentLength))
	}

	var sent model.Message
	var notified int
	names := []string{repository.Messages.Name(), repository.Users.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		si := repository.FindUser(users, from)
		ri := repository.FindUser(users, to)
		if si < 0 || ri < 0 || users[si].IsBlocked || users[ri].IsBlocked {
			return model.NewForbiddenError("Yetkisiz.")
		}

		messages, err := repository.Messages.Load(tx)
		if err != nil {
			return err
		}
		id, err := repository.Messages.NextID(tx)
		if err != nil {
			return err
		}

		now := s.now()
		sent = model.Message{
			ID:        id,
			From:      from,
			To:        to,
			Content:   content,
			Timestamp: model.FormatTimestamp(now),
			Read:      false,
		}
		if err := repository.Messages.Save(tx, append(messages, sent)); err != nil {
			return err
		}

		notified = notification.Deliver(tx, users, model.NotificationDirectMessage, []string{to},
			notification.Payload{Actor: from}, now)
		if notified == 0 {
			return nil
		}
		return repository.Users.Save(tx, users)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordNotifications(string(model.NotificationDirectMessage), notified)
	return &sent, nil
}

// Thread は2ユーザー間のメッセージを古い順に返す。
func (s *Service) Thread(ctx context.Context, userA, userB string) ([]model.Message, error) {
	all, err := repository.Messages.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}

	out := make([]model.Message, 0)
	for _, m := range all {
		if (m.From == userA && m.To == userB) || (m.From == userB && m.To == userA) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return messageTime(out[i]).Before(messageTime(out[j]))
	})
	return out, nil
}

// Conversations はユーザーの会話相手ごとに最新メッセージと未読数を返す。
// 最新メッセージが新しい順に並ぶ。
func (s *Service) Conversations(ctx context.Context, username string) ([]model.Conversation, error) {
	all, err := repository.Messages.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	byOther := make(map[string]*model.Conversation)
	order := make([]string, 0)
	for _, m := range all {
		if m.From != username && m.To != username {
			continue
		}
		other := m.From
		if other == username {
			other = m.To
		}

		conv, ok := byOther[other]
		if !ok {
			conv = &model.Conversation{LastMessage: m}
			byOther[other] = conv
			order = append(order, other)
		} else if messageTime(m).After(messageTime(conv.LastMessage)) {
			conv.LastMessage = m
		}
		if m.To == username && !m.Read {
			conv.UnreadCount++
		}
	}

	out := make([]model.Conversation, 0, len(order))
	for _, other := range order {
		conv := byOther[other]
		if i := repository.FindUser(users, other); i >= 0 {
			conv.User = users[i].Summary()
		} else {
			conv.User = model.UserSummary{Username: other, ProfileImage: model.DefaultAvatarURL}
		}
		out = append(out, *conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return messageTime(out[i].LastMessage).After(messageTime(out[j].LastMessage))
	})
	return out, nil
}

// MarkRead は other から reader 宛ての未読メッセージを既読にする。
// 変更が無い場合は保存しない。既読にした件数を返す。
func (s *Service) MarkRead(ctx context.Context, reader, other string) (int, error) {
	if reader == "" || other == "" {
		return 0, model.NewValidationError("Geçersiz istek.")
	}

	var changed int
	err := s.store.Update(ctx, []string{repository.Messages.Name()}, func(tx *storage.Tx) error {
		messages, err := repository.Messages.Load(tx)
		if err != nil {
			return err
		}
		for i := range messages {
			if messages[i].From == other && messages[i].To == reader && !messages[i].Read {
				messages[i].Read = true
				changed++
			}
		}
		if changed == 0 {
			return nil
		}
		return repository.Messages.Save(tx, messages)
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func messageTime(m model.Message) time.Time {
	t, _ := model.ParseTimestamp(m.Timestamp)
	return t
}
