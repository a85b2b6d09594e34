package storage

import (
	"context"
	"sync"
)

// MemoryBackend はメモリ上にコレクションを保持するBackend。
// テストやデータディレクトリを持たない一時的な起動で使用する。
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte

	// SaveHook が設定されている場合、保存前に呼び出し、エラーを返すと保存を中止する。
	SaveHook func(name string) error
}

// NewMemoryBackend は空のMemoryBackendを生成する。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Load は保持しているコレクションのコピーを返す。
func (b *MemoryBackend) Load(ctx context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.data[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Save はコレクションを置き換える。
func (b *MemoryBackend) Save(ctx context.Context, name string, data []byte) error {
	if b.SaveHook != nil {
		if err := b.SaveHook(name); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = append([]byte(nil), data...)
	return nil
}

// Set はコレクションの生データを直接設定する。テストの初期データ投入用。
func (b *MemoryBackend) Set(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = append([]byte(nil), data...)
}
