// Package repository はストレージ上のコレクションへのアクセス手段を提供する。
//
// Collection はドメインサービス向けの型付きアクセサ、Table は管理画面向けの
// スキーマを持たない汎用CRUDアクセサである。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/storage"
)

// Entity はIDを持つレコード型の制約。
type Entity[T any] interface {
	*T
	EntityID() model.ID
}

// Collection は名前付きコレクションを型Tのスライスとして読み書きする。
type Collection[T any, PT Entity[T]] struct {
	name string
}

// NewCollection はCollectionを生成する。
func NewCollection[T any, PT Entity[T]](name string) Collection[T, PT] {
	return Collection[T, PT]{name: name}
}

// Name はコレクション名を返す。
func (c Collection[T, PT]) Name() string {
	return c.name
}

// List はトランザクション外でコレクション全体を読み込む。
func (c Collection[T, PT]) List(ctx context.Context, store *storage.Store) ([]T, error) {
	records, err := store.Read(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return c.decode(records)
}

// Load はトランザクション内でコレクション全体を読み込む。
func (c Collection[T, PT]) Load(tx *storage.Tx) ([]T, error) {
	records, err := tx.Records(c.name)
	if err != nil {
		return nil, err
	}
	return c.decode(records)
}

// Save はitemsでコレクションを置き換える。
// 型Tが知らないキー（管理画面から追加された項目など）は、同じIDの既存レコードから引き継ぐ。
// そのためomitemptyのフィールドはSaveで削除できない。
func (c Collection[T, PT]) Save(tx *storage.Tx, items []T) error {
	current, err := tx.Records(c.name)
	if err != nil {
		return err
	}

	byID := make(map[model.ID]storage.Record, len(current))
	for _, r := range current {
		if id, ok := r.ID(); ok {
			byID[id] = r
		}
	}

	records := make([]storage.Record, 0, len(items))
	for i := range items {
		if e, ok := any(PT(&items[i])).(listNormalizer); ok {
			e.EnsureLists()
		}
		data, err := json.Marshal(&items[i])
		if err != nil {
			return fmt.Errorf("failed to encode %s record: %w", c.name, err)
		}
		var rec storage.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to encode %s record: %w", c.name, err)
		}

		if orig, ok := byID[PT(&items[i]).EntityID()]; ok {
			for k, v := range orig {
				if _, exists := rec[k]; !exists {
					rec[k] = v
				}
			}
		}
		records = append(records, rec)
	}

	return tx.Put(c.name, records)
}

// listNormalizer は保存前にnilのリストを空にできる型。
type listNormalizer interface {
	EnsureLists()
}

// NextID はコレクション内で未使用のIDを返す。
func (c Collection[T, PT]) NextID(tx *storage.Tx) (model.ID, error) {
	return tx.NextID(c.name)
}

func (c Collection[T, PT]) decode(records []storage.Record) ([]T, error) {
	items := make([]T, 0, len(records))
	for i, r := range records {
		item, skipped, err := decodeRecord[T](r)
		if err != nil {
			return nil, &storage.Error{
				Op:         "decode",
				Collection: c.name,
				Err:        fmt.Errorf("%w: record %d: %v", storage.ErrCorrupt, i, err),
			}
		}
		if len(skipped) > 0 {
			slog.Warn("ignoring mistyped fields",
				"collection", c.name,
				"record", i,
				"fields", skipped,
			)
		}
		items = append(items, item)
	}
	return items, nil
}

// decodeRecord はレコードを型Tに変換する。
// 管理画面から型の合わない値が書き込まれた項目はゼロ値のまま残し、そのキーを skipped として返す。
// コレクション全体を読めなくするよりも、該当項目だけを捨てる。
func decodeRecord[T any](r storage.Record) (item T, skipped []string, err error) {
	data, err := json.Marshal(r)
	if err != nil {
		return item, nil, err
	}
	if err := json.Unmarshal(data, &item); err == nil {
		return item, nil, nil
	}

	// 部分的に書き込まれた値を残さないよう、キーごとにやり直す
	item = *new(T)
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		field, err := json.Marshal(map[string]json.RawMessage{k: r[k]})
		if err != nil {
			return item, nil, err
		}
		var check T
		if err := json.Unmarshal(field, &check); err != nil {
			skipped = append(skipped, k)
			continue
		}
		if err := json.Unmarshal(field, &item); err != nil {
			return item, nil, err
		}
	}
	return item, skipped, nil
}

// コレクション定義。名前は既存のデータファイル名に対応する。
var (
	Users      = NewCollection[model.User]("kullanicilar")
	News       = NewCollection[model.Article]("haberler")
	Comments   = NewCollection[model.Comment]("yorumlar")
	Polls      = NewCollection[model.Poll]("anketler")
	Messages   = NewCollection[model.Message]("mesajlar")
	Categories = NewCollection[model.Category]("kategoriler")
	Sources    = NewCollection[model.Source]("kaynaklar")
	Visits     = NewCollection[model.Visit]("ziyaretciler")
	Sessions   = NewCollection[model.Session]("oturumlar")
)

// NotificationNamespace はユーザーレコード内の通知IDの名前空間。
const NotificationNamespace = "bildirimler"

// FindUser はユーザー名に一致するユーザーのインデックスを返す。見つからない場合は-1。
func FindUser(users []model.User, username string) int {
	for i := range users {
		if users[i].Username == username {
			return i
		}
	}
	return -1
}

// FindByID はIDに一致する要素のインデックスを返す。見つからない場合は-1。
func FindByID[T any, PT Entity[T]](items []T, id model.ID) int {
	for i := range items {
		if PT(&items[i]).EntityID() == id {
			return i
		}
	}
	return -1
}
