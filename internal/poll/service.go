// Package poll は記事に紐づく投票の集計を提供する。
package poll

import (
	"context"
	"fmt"

	"github.com/savsata/gundem/internal/metrics"
	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/storage"
)

// Service は投票のサービス層。
type Service struct {
	store   *storage.Store
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store *storage.Store, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{store: store, metrics: m}
}

// GetByNews は記事に紐づく投票を返す。存在しない場合はnilを返す。
func (s *Service) GetByNews(ctx context.Context, newsID model.ID) (*model.Poll, error) {
	polls, err := repository.Polls.List(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("投票の取得に失敗しました: %w", err)
	}
	for i := range polls {
		if polls[i].NewsID == newsID {
			p := polls[i]
			p.EnsureLists()
			return &p, nil
		}
	}
	return nil, nil
}

// Vote は選択肢に1票を加える。
//
// 投票済みのユーザーは AlreadyVoted、存在しない選択肢は NotFound を返し、いずれの場合も集計は変わらない。
// 票数の加算と投票者の追加は1回の保存で行う。
func (s *Service) Vote(ctx context.Context, pollID, optionID model.ID, username string) (*model.Poll, error) {
	if pollID == 0 || optionID == 0 || username == "" {
		return nil, model.NewValidationError("Anket, seçenek ve kullanıcı zorunludur.")
	}

	var result model.Poll
	err := s.store.Update(ctx, []string{repository.Polls.Name()}, func(tx *storage.Tx) error {
		polls, err := repository.Polls.Load(tx)
		if err != nil {
			return err
		}
		pi := repository.FindByID(polls, pollID)
		if pi < 0 {
			return model.NewPollNotFoundError(pollID)
		}

		p := &polls[pi]
		if p.HasVoted(username) {
			return model.NewAlreadyVotedError()
		}

		oi := -1
		for i := range p.Options {
			if p.Options[i].ID == optionID {
				oi = i
				break
			}
		}
		if oi < 0 {
			return model.NewOptionNotFoundError(optionID)
		}

		p.Options[oi].VoteCount++
		p.Voters = append(p.Voters, username)
		if err := repository.Polls.Save(tx, polls); err != nil {
			return err
		}
		result = polls[pi]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVote()
	return &result, nil
}
