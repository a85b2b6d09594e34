package storage

import (
	"sync"
	"time"

	"github.com/savsata/gundem/internal/model"
)

// IDGenerator はプロセス内で単調増加するIDを名前空間ごとに払い出す。
// 既存データとの互換のためミリ秒単位のUNIX時刻を基準にしつつ、
// 同一ミリ秒内の連続呼び出しや既存IDとの衝突は前回値+1で回避する。
type IDGenerator struct {
	mu   sync.Mutex
	last map[string]int64
	now  func() time.Time
}

// NewIDGenerator はIDGeneratorを生成する。
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		last: make(map[string]int64),
		now:  time.Now,
	}
}

// NewIDGeneratorWithClock は時刻関数を差し替えたIDGeneratorを生成する。テスト用。
func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	g := NewIDGenerator()
	g.now = now
	return g
}

// Next は namespace 内で未使用のIDを返す。
// 返すIDは max(前回値+1, 現在時刻ミリ秒, floor+1) となる。
func (g *IDGenerator) Next(namespace string, floor model.ID) model.ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.now().UnixMilli()
	if last, ok := g.last[namespace]; ok && last+1 > next {
		next = last + 1
	}
	if int64(floor)+1 > next {
		next = int64(floor) + 1
	}
	g.last[namespace] = next
	return model.ID(next)
}
