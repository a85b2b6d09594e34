// Package user はプロフィール、フォロー、保存記事などユーザー単位の操作を提供する。
package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/security"
	"github.com/savsata/gundem/internal/storage"
	"github.com/savsata/gundem/internal/turkish"
)

// searchLimit はユーザー検索の最大件数。
const searchLimit = 10

// CommentHistory はユーザーのコメント履歴の取得インターフェース。
type CommentHistory interface {
	ListByUser(ctx context.Context, username string) ([]model.UserComment, error)
}

// ProfileUpdate はプロフィール更新の入力。nilの項目は変更しない。
type ProfileUpdate struct {
	Bio         *string
	AvatarURL   *string
	SocialLinks map[string]string
}

// Stats はプロフィールに表示する集計値。
type Stats struct {
	FollowerCount  int `json:"followerCount"`
	FollowingCount int `json:"followingCount"`
	LikedCount     int `json:"likedCount"`
	SavedCount     int `json:"savedCount"`
}

// History はユーザーの活動履歴。
type History struct {
	Profile   model.PublicUser    `json:"userProfile"`
	LikedNews []model.Article     `json:"likedNews"`
	Comments  []model.UserComment `json:"comments"`
}

// FollowResult はフォロー切り替えの結果。
type FollowResult struct {
	IsFollowing    bool     `json:"isFollowing"`
	FollowingList  []string `json:"followingList"`
	FollowerCount  int      `json:"followerCount"`
	FollowingCount int      `json:"followingCount"`
}

// SaveResult は記事保存切り替えの結果。
type SaveResult struct {
	IsSaved       bool       `json:"isSaved"`
	SavedArticles []model.ID `json:"savedArticles"`
}

// Service はユーザーのサービス層。
type Service struct {
	store    *storage.Store
	comments CommentHistory
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *storage.Store, comments CommentHistory, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{store: store, comments: comments, metrics: m}
}

func (s *Service) find(ctx context.Context, username string) (*model.User, error) {
	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	i := repository.FindUser(users, username)
	if i < 0 {
		return nil, model.NewUserNotFoundError(username)
	}
	return &users[i], nil
}

// Profile は公開プロフィールを返す。
func (s *Service) Profile(ctx context.Context, username string) (*model.PublicUser, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

// Stats はフォロー数、いいね数、保存数を返す。
func (s *Service) Stats(ctx context.Context, username string) (*Stats, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Stats{
		FollowerCount:  len(u.Followers),
		FollowingCount: len(u.Following),
		LikedCount:     len(u.LikedNewsIDs),
		SavedCount:     len(u.SavedNewsIDs),
	}, nil
}

// UpdateProfile は自己紹介、プロフィール画像、SNSリンクを更新する。
func (s *Service) UpdateProfile(ctx context.Context, username string, in ProfileUpdate) error {
	if in.AvatarURL != nil && *in.AvatarURL != "" && !security.IsHTTPURL(*in.AvatarURL) {
		return model.NewValidationError("Profil resmi geçerli bir URL olmalıdır.")
	}
	links, err := normalizeSocialLinks(in.SocialLinks)
	if err != nil {
		return err
	}

	return s.updateUser(ctx, username, func(u *model.User) {
		if in.Bio != nil {
			u.Bio = strings.TrimSpace(*in.Bio)
		}
		if in.AvatarURL != nil {
			u.ProfileImage = *in.AvatarURL
		}
		if links != nil {
			u.SocialLinks = links
		}
	})
}

// UpdateAvatar はプロフィール画像を更新する。
func (s *Service) UpdateAvatar(ctx context.Context, username, avatarURL string) error {
	if !security.IsHTTPURL(avatarURL) {
		return model.NewValidationError("Profil resmi geçerli bir URL olmalıdır.")
	}
	return s.updateUser(ctx, username, func(u *model.User) {
		u.ProfileImage = avatarURL
	})
}

func (s *Service) updateUser(ctx context.Context, username string, mutate func(u *model.User)) error {
	return s.store.Update(ctx, []string{repository.Users.Name()}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindUser(users, username)
		if i < 0 {
			return model.NewUserNotFoundError(username)
		}
		mutate(&users[i])
		return repository.Users.Save(tx, users)
	})
}

// normalizeSocialLinks はSNSリンクのキーを整形し、URLを検証する。
// nilはnilのまま返し、変更しないことを表す。
func normalizeSocialLinks(in map[string]string) (map[string]string, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" {
			return nil, model.NewValidationError("Sosyal bağlantı adı boş olamaz.")
		}
		if val == "" {
			continue
		}
		if !security.IsHTTPURL(val) {
			return nil, model.NewValidationError(fmt.Sprintf("Geçersiz bağlantı: %s", key))
		}
		out[key] = val
	}
	return out, nil
}

// Search はユーザー名またはメールアドレスの部分一致で最大10件を返す。
func (s *Service) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	out := make([]model.UserSummary, 0)
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}

	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	for i := range users {
		if turkish.Contains(users[i].Username, query) || (users[i].Email != "" && turkish.Contains(users[i].Email, query)) {
			out = append(out, users[i].Summary())
			if len(out) == searchLimit {
				break
			}
		}
	}
	return out, nil
}

// ListByNames は指定したユーザー名の概要を返す。存在しない名前は無視する。
func (s *Service) ListByNames(ctx context.Context, names []string) ([]model.UserSummary, error) {
	out := make([]model.UserSummary, 0, len(names))
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			wanted[n] = true
		}
	}
	if len(wanted) == 0 {
		return out, nil
	}

	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	for i := range users {
		if wanted[users[i].Username] {
			out = append(out, users[i].Summary())
		}
	}
	return out, nil
}

// History は公開プロフィール、いいねした記事、コメント履歴を返す。
func (s *Service) History(ctx context.Context, username string) (*History, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}

	liked, err := s.newsByIDs(ctx, u.LikedNewsIDs)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}

	return &History{Profile: u.Public(), LikedNews: liked, Comments: comments}, nil
}

// SavedNews はユーザーが保存した記事を返す。
func (s *Service) SavedNews(ctx context.Context, username string) ([]model.Article, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.newsByIDs(ctx, u.SavedNewsIDs)
}

// newsByIDs は記事一覧の並び順でIDに一致する記事を返す。
func (s *Service) newsByIDs(ctx context.Context, ids []model.ID) ([]model.Article, error) {
	out := make([]model.Article, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	set := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	news, err := repository.News.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	for _, a := range news {
		if set[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

// ToggleFollow はフォロー状態を切り替える。
// フォローする側の following とされる側の followers は同じ保存で更新される。
func (s *Service) ToggleFollow(ctx context.Context, follower, target string) (*FollowResult, error) {
	if follower == "" || target == "" {
		return nil, model.NewValidationError("Takip eden ve takip edilen kullanıcı zorunludur.")
	}
	if follower == target {
		return nil, model.NewSelfFollowError()
	}

	var result FollowResult
	err := s.store.Update(ctx, []string{repository.Users.Name()}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		fi := repository.FindUser(users, follower)
		if fi < 0 {
			return model.NewUserNotFoundError(follower)
		}
		ti := repository.FindUser(users, target)
		if ti < 0 {
			return model.NewUserNotFoundError(target)
		}

		u, t := &users[fi], &users[ti]
		following := contains(u.Following, target)
		if following {
			u.Following = remove(u.Following, target)
			t.Followers = remove(t.Followers, follower)
		} else {
			u.Following = appendUnique(u.Following, target)
			t.Followers = appendUnique(t.Followers, follower)
		}

		if err := repository.Users.Save(tx, users); err != nil {
			return err
		}
		result = FollowResult{
			IsFollowing:    !following,
			FollowingList:  users[fi].Following,
			FollowerCount:  len(users[ti].Followers),
			FollowingCount: len(users[fi].Following),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordToggle("follow", result.IsFollowing)
	return &result, nil
}

// ToggleSave は記事の保存状態を切り替える。
// 保存する場合のみ記事の存在を確認し、削除済み記事の保存解除は常に許可する。
func (s *Service) ToggleSave(ctx context.Context, username string, newsID model.ID) (*SaveResult, error) {
	if username == "" || newsID == 0 {
		return nil, model.NewValidationError("Kullanıcı ve haber zorunludur.")
	}

	var result SaveResult
	names := []string{repository.Users.Name(), repository.News.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindUser(users, username)
		if i < 0 {
			return model.NewUserNotFoundError(username)
		}

		u := &users[i]
		saved := containsID(u.SavedNewsIDs, newsID)
		if saved {
			u.SavedNewsIDs = removeID(u.SavedNewsIDs, newsID)
		} else {
			news, err := repository.News.Load(tx)
			if err != nil {
				return err
			}
			if repository.FindByID(news, newsID) < 0 {
				return model.NewNewsNotFoundError(newsID)
			}
			u.SavedNewsIDs = append(u.SavedNewsIDs, newsID)
		}

		if err := repository.Users.Save(tx, users); err != nil {
			return err
		}
		result = SaveResult{IsSaved: !saved, SavedArticles: users[i].SavedNewsIDs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordToggle("save", result.IsSaved)
	return &result, nil
}
