// Package database はPostgreSQLバックエンドの接続とcollectionsテーブルのスキーマ管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Status はスキーマのバージョンとdirtyフラグ。Versionが0なら未適用。
type Status struct {
	Version uint
	Dirty   bool
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のStatusを返す。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(databaseURL string) (Status, error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return Status{}, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Status{}, fmt.Errorf("failed to run migrations: %w", err)
	}
	return status(m)
}

// RollbackMigrations はすべてのマイグレーションを戻す。collectionsテーブルは削除される。
func RollbackMigrations(databaseURL string) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// CurrentStatus は適用済みのスキーマバージョンを返す。
func CurrentStatus(databaseURL string) (Status, error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return Status{}, err
	}
	defer m.Close()
	return status(m)
}

func status(m *migrate.Migrate) (Status, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return Status{Version: v, Dirty: dirty}, nil
}
