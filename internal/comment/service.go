package comment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/notification"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/security"
	"github.com/savsata/gundem/internal/storage"
)

// maxBodyLength はコメント本文の最大文字数。
const maxBodyLength = 2000

// deletedNewsTitle は削除済み記事へのコメントに表示するタイトル。
const deletedNewsTitle = "Silinmiş Haber"

// AddInput はコメント投稿の入力。
type AddInput struct {
	NewsID   model.ID
	Username string
	Body     string
	ParentID *model.ID
}

// Service はコメントのサービス層。
type Service struct {
	store     *storage.Store
	sanitizer security.Sanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	maxDepth  int
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *storage.Store, sanitizer security.Sanitizer, m metrics.MetricsCollector, maxDepth int) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		metrics:   m,
		logger:    slog.Default(),
		maxDepth:  maxDepth,
		now:       time.Now,
	}
}

// ListFlat は記事のコメントを新しい順に返す。本文は表示用にサニタイズする。
func (s *Service) ListFlat(ctx context.Context, newsID model.ID) ([]model.Comment, error) {
	all, err := repository.Comments.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}

	out := make([]model.Comment, 0)
	for _, c := range all {
		if c.NewsID == newsID {
			c.Body = s.sanitizer.Comment(c.Body)
			out = append(out, c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListThread は記事のコメントを返信ツリーとして返す。
// ルートは新しい順、同じ親への返信も新しい順に並ぶ。
func (s *Service) ListThread(ctx context.Context, newsID model.ID) ([]*model.ThreadNode, error) {
	flat, err := s.ListFlat(ctx, newsID)
	if err != nil {
		return nil, err
	}

	roots, issues := BuildThread(flat, s.maxDepth)
	for _, issue := range issues {
		s.logger.Warn("comment thread integrity issue",
			slog.Int64("news_id", int64(newsID)),
			slog.Int64("comment_id", int64(issue.CommentID)),
			slog.String("kind", string(issue.Kind)),
		)
	}
	return roots, nil
}

// AddComment はコメントを投稿する。
//
// 返信の場合、親コメントは同じ記事のコメントでなければならない。
// 親コメントの投稿者が別のユーザーであれば、同じ更新の中で yorum_yaniti 通知を配信する。
func (s *Service) AddComment(ctx context.Context, in AddInput) (*model.Comment, error) {
	body := strings.TrimSpace(in.Body)
	if in.NewsID == 0 || in.Username == "" || body == "" {
		return nil, model.NewValidationError("Haber, kullanıcı ve yorum içeriği zorunludur.")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return nil, model.NewValidationError(fmt.Sprintf("Yorum en fazla %d karakter olabilir.", maxBodyLength))
	}

	var created model.Comment
	var notified int
	names := []string{repository.Comments.Name(), repository.Users.Name(), repository.News.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		ui := repository.FindUser(users, in.Username)
		if ui < 0 {
			return model.NewForbiddenError("Yetkisiz işlem.")
		}
		if users[ui].IsBlocked {
			return model.NewUserBlockedError()
		}

		news, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		if repository.FindByID(news, in.NewsID) < 0 {
			return model.NewNewsNotFoundError(in.NewsID)
		}

		comments, err := repository.Comments.Load(tx)
		if err != nil {
			return err
		}

		var parent *model.Comment
		if in.ParentID != nil && *in.ParentID != 0 {
			pi := repository.FindByID(comments, *in.ParentID)
			if pi < 0 || comments[pi].NewsID != in.NewsID {
				return model.NewInvalidParentError(*in.ParentID)
			}
			parent = &comments[pi]
		}

		id, err := repository.Comments.NextID(tx)
		if err != nil {
			return err
		}
		now := s.now()
		created = model.Comment{
			ID:       id,
			NewsID:   in.NewsID,
			Username: in.Username,
			Body:     body,
			Date:     model.FormatTimestamp(now),
		}
		if parent != nil {
			pid := parent.ID
			created.ParentID = &pid
		}

		if parent != nil && parent.Username != in.Username {
			newsID := in.NewsID
			notified = notification.Deliver(tx, users, model.NotificationCommentReply,
				[]string{parent.Username}, notification.Payload{Actor: in.Username, NewsID: &newsID}, now)
		}

		if err := repository.Comments.Save(tx, append(comments, created)); err != nil {
			return err
		}
		if notified > 0 {
			return repository.Users.Save(tx, users)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordComment(created.ParentID != nil)
	if notified > 0 {
		s.metrics.RecordNotifications(string(model.NotificationCommentReply), notified)
	}
	return &created, nil
}

// ListByUser はユーザーのコメントを記事タイトル付きで新しい順に返す。
// 記事が削除されている場合は "Silinmiş Haber" を表示する。
func (s *Service) ListByUser(ctx context.Context, username string) ([]model.UserComment, error) {
	comments, err := repository.Comments.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	news, err := repository.News.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	titles := make(map[model.ID]string, len(news))
	for _, a := range news {
		titles[a.ID] = a.Title
	}

	mine := make([]model.Comment, 0)
	for _, c := range comments {
		if c.Username == username {
			mine = append(mine, c)
		}
	}
	sortNewestFirst(mine)

	out := make([]model.UserComment, 0, len(mine))
	for _, c := range mine {
		title, ok := titles[c.NewsID]
		if !ok {
			title = deletedNewsTitle
		}
		c.Body = s.sanitizer.Comment(c.Body)
		out = append(out, model.UserComment{Comment: c, NewsTitle: title})
	}
	return out, nil
}

// sortNewestFirst はコメントを投稿日時の新しい順に並べる。同時刻は入力順を保つ。
func sortNewestFirst(comments []model.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		ti, _ := model.ParseTimestamp(comments[i].Date)
		tj, _ := model.ParseTimestamp(comments[j].Date)
		return ti.After(tj)
	})
}
