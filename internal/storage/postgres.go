package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresBackend はPostgreSQLのcollectionsテーブルにコレクションを保存するBackend。
// テーブル定義は database パッケージのマイグレーションで作成する。
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend はPostgresBackendを生成する。
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Load はコレクションのJSONを取得する。行が存在しない場合はnilを返す。
func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, error) {
	query := `SELECT records FROM collections WHERE name = $1`

	var data []byte
	err := b.db.QueryRowContext(ctx, query, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return data, nil
}

// Save はコレクションのJSONをUPSERTする。
// 1行の更新はPostgreSQL上でアトミックに行われる。
func (b *PostgresBackend) Save(ctx context.Context, name string, data []byte) error {
	query := `
		INSERT INTO collections (name, records, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET
			records = EXCLUDED.records,
			updated_at = now()`

	if _, err := b.db.ExecContext(ctx, query, name, string(data)); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Lock はコレクション名ごとのアドバイザリロックを専用コネクション上で取得する。
// api と worker が同じデータベースを共有しても「読み込み→変更→保存」が重ならない。
func (b *PostgresBackend) Lock(ctx context.Context, names []string) (func(), error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var held []string
	unlock := func() {
		// キャンセル済みのコンテキストでも解放できるようにする
		bg := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			conn.ExecContext(bg, `SELECT pg_advisory_unlock(hashtext($1))`, held[i])
		}
		conn.Close()
	}

	for _, name := range names {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, name); err != nil {
			unlock()
			return nil, fmt.Errorf("failed to lock collection %s: %w", name, err)
		}
		held = append(held, name)
	}
	return unlock, nil
}

// Ping はデータベース接続を確認する。ヘルスチェックで使用する。
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
