package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/storage"
)

// collectionNamePattern は管理画面から指定できるコレクション名。
// ファイル名として使用するため、パス区切り等を含む名前は拒否する。
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateCollectionName はコレクション名が使用可能かを検証する。
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return model.NewValidationError(fmt.Sprintf("Geçersiz koleksiyon adı: %q", name))
	}
	return nil
}

// Table は任意のコレクションに対するスキーマを持たないCRUD操作を提供する。
// 管理画面は任意のJSONオブジェクトを1行として書き込めるため、内容の検証は行わない。
type Table struct {
	store *storage.Store
}

// NewTable はTableを生成する。
func NewTable(store *storage.Store) *Table {
	return &Table{store: store}
}

// List はコレクションの全レコードを返す。
func (t *Table) List(ctx context.Context, name string) ([]storage.Record, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	return t.store.Read(ctx, name)
}

// Get はIDに一致するレコードを返す。
func (t *Table) Get(ctx context.Context, name string, id model.ID) (storage.Record, error) {
	records, err := t.List(ctx, name)
	if err != nil {
		return nil, err
	}
	if i := indexOfRecord(records, id); i >= 0 {
		return records[i], nil
	}
	return nil, model.NewRowNotFoundError(name, id)
}

// Create はレコードを末尾に追加する。idが無い場合は新しいIDを割り当てる。
func (t *Table) Create(ctx context.Context, name string, rec storage.Record) (storage.Record, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = storage.Record{}
	}

	err := t.store.Update(ctx, []string{name}, func(tx *storage.Tx) error {
		records, err := tx.Records(name)
		if err != nil {
			return err
		}

		if _, ok := rec.ID(); !ok {
			id, err := tx.NextID(name)
			if err != nil {
				return err
			}
			rec["id"] = json.RawMessage(id.String())
		}

		return tx.Put(name, append(records, rec))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update は既存レコードにpatchのキーを浅くマージする。
// id キーは変更しない。
func (t *Table) Update(ctx context.Context, name string, id model.ID, patch storage.Record) (storage.Record, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var updated storage.Record
	err := t.store.Update(ctx, []string{name}, func(tx *storage.Tx) error {
		records, err := tx.Records(name)
		if err != nil {
			return err
		}

		i := indexOfRecord(records, id)
		if i < 0 {
			return model.NewRowNotFoundError(name, id)
		}

		merged := make(storage.Record, len(records[i])+len(patch))
		for k, v := range records[i] {
			merged[k] = v
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			merged[k] = v
		}

		next := make([]storage.Record, len(records))
		copy(next, records)
		next[i] = merged
		updated = merged
		return tx.Put(name, next)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete はIDに一致する最初のレコードを削除する。
// 他のレコードからの参照（フォロワー一覧等）は整理しない。
func (t *Table) Delete(ctx context.Context, name string, id model.ID) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	return t.store.Update(ctx, []string{name}, func(tx *storage.Tx) error {
		records, err := tx.Records(name)
		if err != nil {
			return err
		}

		i := indexOfRecord(records, id)
		if i < 0 {
			return model.NewRowNotFoundError(name, id)
		}

		next := make([]storage.Record, 0, len(records)-1)
		next = append(next, records[:i]...)
		next = append(next, records[i+1:]...)
		return tx.Put(name, next)
	})
}

func indexOfRecord(records []storage.Record, id model.ID) int {
	for i, r := range records {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}
