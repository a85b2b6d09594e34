// Package admin は管理画面向けのコレクション操作を提供する。
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/savsata/gundem/internal/auth"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

// passwordKey はユーザーレコードのパスワードキー。
const passwordKey = "sifre"

// Service は管理画面のサービス層。
// 任意のコレクションを repository.Table 経由で読み書きする。
type Service struct {
	table  *repository.Table
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(table *repository.Table) *Service {
	return &Service{table: table, logger: slog.Default()}
}

// List はコレクションの全レコードを返す。
func (s *Service) List(ctx context.Context, collection string) ([]storage.Record, error) {
	records, err := s.table.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	if collection == repository.Users.Name() {
		records = withoutPasswords(records)
	}
	return records, nil
}

// Get はIDに一致するレコードを返す。
func (s *Service) Get(ctx context.Context, collection string, id model.ID) (storage.Record, error) {
	rec, err := s.table.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if collection == repository.Users.Name() {
		rec = withoutPassword(rec)
	}
	return rec, nil
}

// Create はレコードを追加する。ユーザーのパスワードが平文の場合はハッシュ化して保存する。
func (s *Service) Create(ctx context.Context, collection string, rec storage.Record) (storage.Record, error) {
	if err := s.hashPassword(collection, rec); err != nil {
		return nil, err
	}
	created, err := s.table.Create(ctx, collection, rec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin record created", slog.String("collection", collection))
	return created, nil
}

// Update はレコードにpatchを浅くマージする。
func (s *Service) Update(ctx context.Context, collection string, id model.ID, patch storage.Record) (storage.Record, error) {
	if err := s.hashPassword(collection, patch); err != nil {
		return nil, err
	}
	updated, err := s.table.Update(ctx, collection, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin record updated",
		slog.String("collection", collection),
		slog.Int64("id", int64(id)),
	)
	if collection == repository.Users.Name() {
		updated = withoutPassword(updated)
	}
	return updated, nil
}

// Delete はレコードを削除する。他のレコードからの参照は整理しない。
func (s *Service) Delete(ctx context.Context, collection string, id model.ID) error {
	if err := s.table.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.logger.Info("admin record deleted",
		slog.String("collection", collection),
		slog.Int64("id", int64(id)),
	)
	return nil
}

func (s *Service) hashPassword(collection string, rec storage.Record) error {
	if collection != repository.Users.Name() || rec == nil {
		return nil
	}
	raw, ok := rec[passwordKey]
	if !ok {
		return nil
	}
	var pw string
	if err := json.Unmarshal(raw, &pw); err != nil {
		return model.NewValidationError("Şifre metin olmalıdır.")
	}
	if pw == "" || auth.IsHashed(pw) {
		return nil
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	encoded, err := json.Marshal(hash)
	if err != nil {
		return err
	}
	rec[passwordKey] = encoded
	return nil
}

func withoutPassword(rec storage.Record) storage.Record {
	if _, ok := rec[passwordKey]; !ok {
		return rec
	}
	out := make(storage.Record, len(rec))
	for k, v := range rec {
		if k != passwordKey {
			out[k] = v
		}
	}
	return out
}

func withoutPasswords(records []storage.Record) []storage.Record {
	out := make([]storage.Record, 0, len(records))
	for _, r := range records {
		out = append(out, withoutPassword(r))
	}
	return out
}
