package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend はディレクトリ配下に <name>.json としてコレクションを保存する。
type FileBackend struct {
	dir string
}

var _ Locker = (*FileBackend)(nil)

// NewFileBackend はFileBackendを生成する。ディレクトリが存在しない場合は作成する。
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir はデータディレクトリのパスを返す。
func (b *FileBackend) Dir() string {
	return b.dir
}

// Ping はデータディレクトリにアクセスできるかを確認する。
func (b *FileBackend) Ping(ctx context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.dir)
	}
	return nil
}

// Load はコレクションファイルを読み込む。ファイルが存在しない場合はnilを返す。
func (b *FileBackend) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save は一時ファイルに書き込んでからリネームすることで、コレクションファイルをアトミックに置き換える。
func (b *FileBackend) Save(ctx context.Context, name string, data []byte) error {
	return WriteFileAtomic(b.path(name), data)
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+".json")
}

// WriteFileAtomic は同じディレクトリの一時ファイルに書き込み、fsync後にリネームする。
// サイトマップ出力など、コレクション以外の静的ファイル書き込みでも使用する。
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// 失敗時は一時ファイルを残さない
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
