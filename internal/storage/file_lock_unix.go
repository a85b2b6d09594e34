//go:build unix

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ロック待ちの間隔。flockはコンテキストを受け取らないため非ブロッキングで再試行する。
const flockRetryInterval = 5 * time.Millisecond

// Lock はコレクションごとに <dir>/.<name>.lock へflockで排他ロックを取得する。
// serve と worker のように同じデータディレクトリを共有する別プロセス間でも
// 読み込みから保存までを直列化する。names は呼び出し側でソート済みであること。
func (b *FileBackend) Lock(ctx context.Context, names []string) (func(), error) {
	var held []*os.File
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			unix.Flock(int(held[i].Fd()), unix.LOCK_UN)
			held[i].Close()
		}
	}

	for _, name := range names {
		f, err := os.OpenFile(b.lockPath(name), os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			unlock()
			return nil, fmt.Errorf("failed to open lock file for %s: %w", name, err)
		}
		if err := flock(ctx, f); err != nil {
			f.Close()
			unlock()
			return nil, fmt.Errorf("failed to lock collection %s: %w", name, err)
		}
		held = append(held, f)
	}
	return unlock, nil
}

func flock(ctx context.Context, f *os.File) error {
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return err
		}

		t := time.NewTimer(flockRetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (b *FileBackend) lockPath(name string) string {
	return filepath.Join(b.dir, "."+name+".lock")
}
