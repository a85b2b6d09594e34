// Package visitor はアクセスログ（ziyaretciler）の記録を提供する。
package visitor

import (
	"context"
	"fmt"
	"time"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

// DefaultLimit は保持するアクセスログの件数。
const DefaultLimit = 1000

// Service はアクセスログのサービス層。
type Service struct {
	store *storage.Store
	limit int
	now   func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。limitが0以下の場合は DefaultLimit を使う。
func NewService(store *storage.Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{store: store, limit: limit, now: time.Now}
}

// RecordVisit はアクセスを末尾に追加し、古いものから削って直近 limit 件を保持する。
func (s *Service) RecordVisit(ctx context.Context, v model.Visit) error {
	return s.store.Update(ctx, []string{repository.Visits.Name()}, func(tx *storage.Tx) error {
		visits, err := repository.Visits.Load(tx)
		if err != nil {
			return err
		}
		id, err := repository.Visits.NextID(tx)
		if err != nil {
			return err
		}
		v.ID = id
		v.Timestamp = model.FormatTimestamp(s.now())

		visits = append(visits, v)
		if over := len(visits) - s.limit; over > 0 {
			visits = visits[over:]
		}
		return repository.Visits.Save(tx, visits)
	})
}

// Recent は新しい順に最大n件のアクセスログを返す。
func (s *Service) Recent(ctx context.Context, n int) ([]model.Visit, error) {
	visits, err := repository.Visits.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	out := make([]model.Visit, 0, n)
	for i := len(visits) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, visits[i])
	}
	return out, nil
}
