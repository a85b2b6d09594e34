// Package storage はコレクション単位のレコード永続化を提供する。
//
// 1コレクションは1つのJSON配列として保存され、読み込みと保存は常にコレクション全体で行う。
// Storeはコレクションごとのミューテックスで「読み込み→変更→保存」を直列化する。
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrCorrupt は保存済みデータを解析できなかったことを示す。
// 空のコレクションとして扱わず、呼び出し元にエラーとして返す。
var ErrCorrupt = errors.New("storage: corrupt collection")

// Backend はコレクションの生データを読み書きするインターフェース。
type Backend interface {
	// Load はコレクションの内容を返す。存在しない場合はnil, nilを返す。
	Load(ctx context.Context, name string) ([]byte, error)
	// Save はコレクションの内容を置き換える。
	// 読み込み側が書きかけの内容を観測しないよう、アトミックに置き換えること。
	Save(ctx context.Context, name string, data []byte) error
}

// Locker はプロセスをまたいでコレクションを排他できるBackend。
// 複数プロセスが同じ保存先を共有する場合に、Storeのプロセス内ロックに加えて取得する。
type Locker interface {
	// Lock は names を昇順に排他する。返す unlock は取得済みのロックをすべて解放する。
	Lock(ctx context.Context, names []string) (unlock func(), err error)
}

// Error はストレージ操作の失敗を表す。
type Error struct {
	Op         string // lock, load, save, decode
	Collection string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}
