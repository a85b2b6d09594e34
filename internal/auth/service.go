// Package auth は会員登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

// minimumAge は会員登録できる最低年齢。
const minimumAge = 18

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RegisterInput は会員登録の入力。
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	Birthdate string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	store  *storage.Store
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(store *storage.Store, config ServiceConfig) *Service {
	return &Service{store: store, config: config, now: time.Now}
}

// Register はユーザーを登録する。
// 全項目が必須で、18歳未満とユーザー名の重複は拒否する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.SelfUser, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || in.Password == "" || email == "" || in.Birthdate == "" {
		return nil, model.NewValidationError("Eksik bilgi.")
	}

	birth, ok := model.ParseTimestamp(in.Birthdate)
	if !ok {
		return nil, model.NewValidationError("Geçersiz doğum tarihi.")
	}
	if age(birth, s.now()) < minimumAge {
		return nil, model.NewUnderageError()
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created model.User
	err = s.store.Update(ctx, []string{repository.Users.Name()}, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		if repository.FindUser(users, username) >= 0 {
			return model.NewUsernameTakenError(username)
		}

		id, err := repository.Users.NextID(tx)
		if err != nil {
			return err
		}
		created = model.User{
			ID:           id,
			Username:     username,
			Password:     hash,
			Email:        email,
			Birthdate:    in.Birthdate,
			Role:         model.RoleUser,
			ProfileImage: model.DefaultAvatarURL,
		}
		created.EnsureLists()
		return repository.Users.Save(tx, append(users, created))
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", slog.String("username", username))
	self := created.Self()
	return &self, nil
}

// age は誕生日から満年齢を計算する。
func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// Login はユーザー名とパスワードを照合してセッションを発行する。
// 平文で保存されていたパスワードはログイン成功時にハッシュへ置き換える。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.SelfUser, error) {
	if username == "" || password == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	var session model.Session
	var self model.SelfUser
	names := []string{repository.Users.Name(), repository.Sessions.Name()}
	err := s.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		i := repository.FindUser(users, username)
		if i < 0 {
			return model.NewInvalidCredentialsError()
		}
		ok, needsUpgrade := CheckPassword(users[i].Password, password)
		if !ok {
			return model.NewInvalidCredentialsError()
		}
		if users[i].IsBlocked {
			return model.NewUserBlockedError()
		}

		if needsUpgrade {
			hash, err := HashPassword(password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			users[i].Password = hash
			if err := repository.Users.Save(tx, users); err != nil {
				return err
			}
		}

		sessions, err := repository.Sessions.Load(tx)
		if err != nil {
			return err
		}
		now := s.now()
		sessions = pruneExpired(sessions, now)

		id, err := repository.Sessions.NextID(tx)
		if err != nil {
			return err
		}
		session = model.Session{
			ID:        id,
			Token:     uuid.New().String(),
			Username:  users[i].Username,
			ExpiresAt: model.FormatTimestamp(now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)),
			CreatedAt: model.FormatTimestamp(now),
		}
		self = users[i].Self()
		return repository.Sessions.Save(tx, append(sessions, session))
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in", slog.String("username", username))
	return &session, &self, nil
}

// PruneExpiredSessions は期限切れのセッションを削除し、削除した件数を返す。
func (s *Service) PruneExpiredSessions(ctx context.Context) (int, error) {
	var removed int
	err := s.store.Update(ctx, []string{repository.Sessions.Name()}, func(tx *storage.Tx) error {
		sessions, err := repository.Sessions.Load(tx)
		if err != nil {
			return err
		}
		before := len(sessions)
		kept := pruneExpired(sessions, s.now())
		removed = before - len(kept)
		if removed == 0 {
			return nil
		}
		return repository.Sessions.Save(tx, kept)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return removed, nil
}

// pruneExpired は期限切れのセッションを取り除く。
func pruneExpired(sessions []model.Session, now time.Time) []model.Session {
	out := sessions[:0]
	for _, sess := range sessions {
		if exp, ok := model.ParseTimestamp(sess.ExpiresAt); ok && exp.After(now) {
			out = append(out, sess)
		}
	}
	return out
}

// Logout はセッションを破棄する。存在しないトークンは成功として扱う。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("session token is required")
	}

	return s.store.Update(ctx, []string{repository.Sessions.Name()}, func(tx *storage.Tx) error {
		sessions, err := repository.Sessions.Load(tx)
		if err != nil {
			return err
		}
		out := make([]model.Session, 0, len(sessions))
		for _, sess := range sessions {
			if sess.Token != token {
				out = append(out, sess)
			}
		}
		if len(out) == len(sessions) {
			return nil
		}
		return repository.Sessions.Save(tx, out)
	})
}

// FindSession はトークンに対応する有効なセッションのユーザー名を返す。
// 見つからないか期限切れの場合は空文字列を返す。
func (s *Service) FindSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	sessions, err := repository.Sessions.List(ctx, s.store)
	if err != nil {
		return "", fmt.Errorf("failed to find session: %w", err)
	}
	now := s.now()
	for _, sess := range sessions {
		if sess.Token != token {
			continue
		}
		if exp, ok := model.ParseTimestamp(sess.ExpiresAt); ok && exp.After(now) {
			return sess.Username, nil
		}
		return "", nil
	}
	return "", nil
}

// CurrentUser はログイン中のユーザーを本人向けの表現で返す。
func (s *Service) CurrentUser(ctx context.Context, username string) (*model.SelfUser, error) {
	if username == "" {
		return nil, model.NewUnauthorizedError()
	}
	return s.Verify(ctx, username)
}

// Verify はユーザーの存在を確認し、最新のユーザー情報を返す。
func (s *Service) Verify(ctx context.Context, username string) (*model.SelfUser, error) {
	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	i := repository.FindUser(users, username)
	if i < 0 {
		return nil, model.NewUserNotFoundError(username)
	}
	self := users[i].Self()
	return &self, nil
}

// IsAdmin はユーザーが管理者かを返す。
func (s *Service) IsAdmin(ctx context.Context, username string) (bool, error) {
	users, err := repository.Users.List(ctx, s.store)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	i := repository.FindUser(users, username)
	if i < 0 {
		return false, nil
	}
	return users[i].IsAdmin() && !users[i].IsBlocked, nil
}
