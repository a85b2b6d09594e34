// Package news は記事の一覧・公開・いいね・正規化を提供する。
package news

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/notification"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/security"
	"github.com/savsata/gundem/internal/storage"
	"github.com/savsata/gundem/internal/turkish"
)

const (
	defaultPageSize = 5
	maxPageSize     = 50
	searchLimit     = 10
)

// defaultPublisherLogo はプロフィール画像の無いユーザーが公開した記事のロゴ。
const defaultPublisherLogo = "https://cdn-icons-png.flaticon.com/512/1077/1077114.png"

// ListQuery は記事一覧の取得条件。
// Following が指定された場合、Category は無視される。
// Viewer が空の場合は匿名閲覧として成人向け記事を除外する。
type ListQuery struct {
	Page      int
	Limit     int
	Category  string
	Following []string
	Viewer    string
}

// PublishInput はユーザーによる記事公開の入力。
type PublishInput struct {
	Username       string
	Title          string
	Summary        string
	BodyHTML       string
	ImageURL       string
	Category       string
	AdultOnly      bool
	OriginalNewsID *model.ID
}

// LikeResult はいいね切り替えの結果。
type LikeResult struct {
	IsLiked  bool `json:"isLiked"`
	NewCount int  `json:"newCount"`
}

// NormalizeResult はデータ正規化で処理した件数。
type NormalizeResult struct {
	News  int `json:"news"`
	Users int `json:"users"`
}

// Service は記事のサービス層。
type Service struct {
	store     *storage.Store
	sanitizer security.Sanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *storage.Store, sanitizer security.Sanitizer, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{store: store, sanitizer: sanitizer, metrics: m, now: time.Now}
}

// List は条件に一致する記事をページ単位で返す。並び順は保存順（新しい記事が先頭）。
func (s *Service) List(ctx context.Context, q ListQuery) (*model.ArticlePage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	all, err := repository.News.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	logos, err := s.sourceLogos(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]model.Article, 0, len(all))
	for _, a := range all {
		if a.AdultOnly && q.Viewer == "" {
			continue
		}
		if len(q.Following) > 0 {
			if !containsString(q.Following, a.Author().DisplayName()) {
				continue
			}
		} else if q.Category != "" && a.Category != q.Category {
			continue
		}
		filtered = append(filtered, a)
	}

	start := (q.Page - 1) * q.Limit
	end := q.Page * q.Limit
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	data := make([]model.ArticleView, 0, end-start)
	for _, a := range filtered[start:end] {
		applyLogo(&a, logos)
		data = append(data, s.view(a))
	}

	return &model.ArticlePage{
		Data:    data,
		Total:   len(filtered),
		Page:    q.Page,
		HasMore: q.Page*q.Limit < len(filtered),
	}, nil
}

// Get は記事を1件返す。成人向け記事は匿名閲覧者には返さない。
func (s *Service) Get(ctx context.Context, id model.ID, viewer string) (*model.ArticleView, error) {
	all, err := repository.News.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	i := repository.FindByID(all, id)
	if i < 0 {
		return nil, model.NewNewsNotFoundError(id)
	}
	if all[i].AdultOnly && viewer == "" {
		return nil, model.NewAdultContentError()
	}

	logos, err := s.sourceLogos(ctx)
	if err != nil {
		return nil, err
	}
	a := all[i]
	applyLogo(&a, logos)
	v := s.view(a)
	return &v, nil
}

// IncrementView は閲覧数を1増やし、新しい閲覧数を返す。
func (s *Service) IncrementView(ctx context.Context, id model.ID) (int, error) {
	var count int
	err := s.store.Update(ctx, []string{repository.News.Name()}, func(tx *storage.Tx) error {
		all, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindByID(all, id)
		if i < 0 {
			return model.NewNewsNotFoundError(id)
		}
		all[i].ViewCount++
		count = all[i].ViewCount
		return repository.News.Save(tx, all)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Publish はユーザーの記事を一覧の先頭に追加し、投稿者のフォロワー全員に yeni_haber 通知を配信する。
//
// 本文はサニタイズして保存する。OriginalNewsID を指定した場合は再共有として扱い、元記事が存在しなければならない。
// 記事の追加と通知の配信は同じ更新の中で行う。
func (s *Service) Publish(ctx context.Context, in PublishInput) (*model.Article, error) {
	title := strings.TrimSpace(in.Title)
	if in.Username == "" || title == "" {
		return nil, model.NewValidationError("Başlık zorunludur.")
	}
	image := CleanURL(in.ImageURL)
	if image == "" {
		image = model.DefaultImageURL
	} else if !security.IsHTTPURL(image) {
		return nil, model.NewValidationError("Geçersiz görsel adresi.")
	}

	var created model.Article
	var notified int
	names := []string{repository.News.Name(), repository.Users.Name(), repository.Categories.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		ui := repository.FindUser(users, in.Username)
		if ui < 0 || users[ui].IsBlocked {
			return model.NewForbiddenError("Yetkisiz.")
		}

		all, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		if in.OriginalNewsID != nil && *in.OriginalNewsID != 0 {
			if repository.FindByID(all, *in.OriginalNewsID) < 0 {
				return model.NewNewsNotFoundError(*in.OriginalNewsID)
			}
		}

		categories, err := repository.Categories.Load(tx)
		if err != nil {
			return err
		}
		id, err := repository.News.NextID(tx)
		if err != nil {
			return err
		}

		author := &users[ui]
		logo := author.ProfileImage
		if logo == "" {
			logo = defaultPublisherLogo
		}

		now := s.now()
		created = model.Article{
			ID:          id,
			Title:       title,
			ShortTitle:  model.ShortenTitle(title, ShortTitleLength),
			Summary:     strings.TrimSpace(in.Summary),
			BodyHTML:    s.sanitizer.Article(in.BodyHTML),
			ImageURL:    image,
			Category:    NormalizeCategory(in.Category, CategoryNames(categories)),
			Username:    in.Username,
			Source:      &model.SourceRef{Name: in.Username, LogoURL: logo},
			AdultOnly:   in.AdultOnly,
			PublishedAt: model.FormatTimestamp(now),
		}
		if in.OriginalNewsID != nil && *in.OriginalNewsID != 0 {
			orig := *in.OriginalNewsID
			created.OriginalNewsID = &orig
		}

		if err := repository.News.Save(tx, append([]model.Article{created}, all...)); err != nil {
			return err
		}

		newsID := created.ID
		followers := append([]string(nil), author.Followers...)
		notified = notification.Deliver(tx, users, model.NotificationNewArticle, followers,
			notification.Payload{Actor: in.Username, NewsID: &newsID, Title: title}, now)
		if notified == 0 {
			return nil
		}
		return repository.Users.Save(tx, users)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPublish(created.OriginalNewsID != nil)
	s.metrics.RecordNotifications(string(model.NotificationNewArticle), notified)
	return &created, nil
}

// DeleteOwn は投稿者本人の記事を削除する。
func (s *Service) DeleteOwn(ctx context.Context, username string, id model.ID) error {
	if username == "" {
		return model.NewValidationError("Kullanıcı gerekli.")
	}
	return s.store.Update(ctx, []string{repository.News.Name()}, func(tx *storage.Tx) error {
		all, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindByID(all, id)
		if i < 0 {
			return model.NewNewsNotFoundError(id)
		}
		if !all[i].IsAuthoredBy(username) {
			return model.NewForbiddenError("Bu haberi silme yetkiniz yok.")
		}
		next := make([]model.Article, 0, len(all)-1)
		next = append(next, all[:i]...)
		next = append(next, all[i+1:]...)
		return repository.News.Save(tx, next)
	})
}

// ListByUser はユーザー名または配信元名が一致する記事を新しい順に返す。
// 名前の比較は大文字小文字を区別しない。
func (s *Service) ListByUser(ctx context.Context, username string) ([]model.ArticleView, error) {
	all, err := repository.News.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	name := turkish.Lower(username)
	matched := make([]model.Article, 0)
	for _, a := range all {
		if turkish.Lower(a.Username) == name || (a.Source != nil && turkish.Lower(a.Source.Name) == name) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ti, _ := model.ParseTimestamp(matched[i].PublishedAt)
		tj, _ := model.ParseTimestamp(matched[j].PublishedAt)
		return ti.After(tj)
	})

	out := make([]model.ArticleView, 0, len(matched))
	for _, a := range matched {
		out = append(out, s.view(a))
	}
	return out, nil
}

// Search はタイトル・要約・本文テキストにクエリを含む記事を最大10件返す。
// 成人向け記事は匿名閲覧者には返さない。
func (s *Service) Search(ctx context.Context, query, viewer string) ([]model.ArticleView, error) {
	query = strings.TrimSpace(query)
	out := make([]model.ArticleView, 0)
	if query == "" {
		return out, nil
	}

	all, err := repository.News.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	q := turkish.Lower(query)
	for _, a := range all {
		if a.AdultOnly && viewer == "" {
			continue
		}
		if strings.Contains(turkish.Lower(a.Title), q) ||
			strings.Contains(turkish.Lower(a.Summary), q) ||
			strings.Contains(turkish.Lower(PlainText(a.BodyHTML)), q) {
			out = append(out, s.view(a))
			if len(out) == searchLimit {
				break
			}
		}
	}
	return out, nil
}

// Categories は登録済みカテゴリを返す。
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := repository.Categories.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ToggleLike はユーザーのいいねを切り替える。
// begeni_sayisi は増減ではなく、同じ更新の中で全ユーザーのいいね一覧から数え直す。
func (s *Service) ToggleLike(ctx context.Context, username string, newsID model.ID) (*LikeResult, error) {
	if username == "" || newsID == 0 {
		return nil, model.NewValidationError("Kullanıcı ve haber zorunludur.")
	}

	var result LikeResult
	names := []string{repository.Users.Name(), repository.News.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		all, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		ni := repository.FindByID(all, newsID)
		if ni < 0 {
			return model.NewNewsNotFoundError(newsID)
		}

		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		ui := repository.FindUser(users, username)
		if ui < 0 {
			return model.NewUserNotFoundError(username)
		}

		u := &users[ui]
		liked := false
		kept := make([]model.ID, 0, len(u.LikedNewsIDs)+1)
		for _, id := range u.LikedNewsIDs {
			if id == newsID {
				liked = true
				continue
			}
			kept = append(kept, id)
		}
		if !liked {
			kept = append(kept, newsID)
		}
		u.LikedNewsIDs = kept

		count := 0
		for i := range users {
			for _, id := range users[i].LikedNewsIDs {
				if id == newsID {
					count++
					break
				}
			}
		}
		all[ni].LikeCount = count

		if err := repository.Users.Save(tx, users); err != nil {
			return err
		}
		if err := repository.News.Save(tx, all); err != nil {
			return err
		}
		result = LikeResult{IsLiked: !liked, NewCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordToggle("like", result.IsLiked)
	return &result, nil
}

// Normalize は記事とユーザーのデータを一括で正規化する。
func (s *Service) Normalize(ctx context.Context) (*NormalizeResult, error) {
	var result NormalizeResult
	names := []string{repository.News.Name(), repository.Users.Name(), repository.Categories.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		categories, err := repository.Categories.Load(tx)
		if err != nil {
			return err
		}
		known := CategoryNames(categories)
		now := model.FormatTimestamp(s.now())

		all, err := repository.News.Load(tx)
		if err != nil {
			return err
		}
		for i := range all {
			NormalizeArticle(&all[i], known, now)
		}
		if err := repository.News.Save(tx, all); err != nil {
			return err
		}

		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		for i := range users {
			NormalizeUser(&users[i])
		}
		if err := repository.Users.Save(tx, users); err != nil {
			return err
		}

		result = NormalizeResult{News: len(all), Users: len(users)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) sourceLogos(ctx context.Context) (map[string]string, error) {
	sources, err := repository.Sources.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	logos := make(map[string]string, len(sources))
	for _, src := range sources {
		if src.LogoURL != "" {
			logos[src.Name] = src.LogoURL
		}
	}
	return logos, nil
}

// applyLogo は配信元のロゴを kaynaklar の最新の値に置き換える。
func applyLogo(a *model.Article, logos map[string]string) {
	if a.Source == nil {
		return
	}
	if logo, ok := logos[a.Source.Name]; ok {
		src := *a.Source
		src.LogoURL = logo
		a.Source = &src
	}
}

func (s *Service) view(a model.Article) model.ArticleView {
	a.BodyHTML = s.sanitizer.Article(a.BodyHTML)
	return model.ArticleView{
		Article:     a,
		Author:      a.Author(),
		ReadingTime: ReadingTime(a.BodyHTML),
	}
}
