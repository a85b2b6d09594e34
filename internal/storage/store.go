package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/savsata/gundem/internal/model"
)

// Record はコレクション内の1レコード。
// スキーマを持たないため、未知のキーもそのまま保持される。
type Record map[string]json.RawMessage

// ID はレコードの id フィールドを返す。存在しないか数値でない場合はfalseを返す。
func (r Record) ID() (model.ID, bool) {
	raw, ok := r["id"]
	if !ok {
		return 0, false
	}
	var id model.ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, false
	}
	return id, true
}

// MaxID はレコード群の最大IDを返す。
func MaxID(records []Record) model.ID {
	var max model.ID
	for _, r := range records {
		if id, ok := r.ID(); ok && id > max {
			max = id
		}
	}
	return max
}

// SaveObserver はコレクション保存のレイテンシと結果を受け取る。
type SaveObserver interface {
	ObserveSave(collection string, duration time.Duration, err error)
}

// Option はStoreの設定を変更する。
type Option func(*Store)

// WithSaveObserver は保存結果の通知先を設定する。
func WithSaveObserver(o SaveObserver) Option {
	return func(s *Store) { s.observer = o }
}

// WithIDGenerator はID生成器を差し替える。
func WithIDGenerator(g *IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger はロールバック失敗等を記録するロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store はBackendの上でコレクション単位の直列化とトランザクション境界を提供する。
type Store struct {
	backend  Backend
	ids      *IDGenerator
	observer SaveObserver
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore はStoreを生成する。
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		ids:     NewIDGenerator(),
		logger:  slog.Default(),
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pinger は接続確認ができるBackend。
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping はBackendが利用可能かを確認する。確認手段の無いBackendは常に成功する。
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Read はコレクション全体を読み込む。
// 保存先が存在しないか空の場合は空スライスを返し、解析できない場合は ErrCorrupt を返す。
func (s *Store) Read(ctx context.Context, name string) ([]Record, error) {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	records, _, err := s.load(ctx, name)
	return records, err
}

// Update は names のコレクションをロックしたうえで fn を実行し、変更されたコレクションを保存する。
//
// ロックはコレクション名の昇順で取得するため、複数コレクションを扱う更新同士でもデッドロックしない。
// fn がエラーを返した場合は何も保存しない。
// 2つ目以降のコレクションの保存に失敗した場合は、保存済みのコレクションを更新前の内容に戻す。
func (s *Store) Update(ctx context.Context, names []string, fn func(tx *Tx) error) error {
	sorted := uniqueSorted(names)

	for _, name := range sorted {
		s.lockFor(name).Lock()
	}
	defer func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			s.lockFor(sorted[i]).Unlock()
		}
	}()

	if l, ok := s.backend.(Locker); ok {
		unlock, err := l.Lock(ctx, sorted)
		if err != nil {
			return &Error{Op: "lock", Collection: strings.Join(sorted, ","), Err: err}
		}
		defer unlock()
	}

	// 1. 対象コレクションを読み込む
	tx := &Tx{ctx: ctx, store: s, cols: make(map[string]*txCollection, len(sorted))}
	for _, name := range sorted {
		records, raw, err := s.load(ctx, name)
		if err != nil {
			return err
		}
		tx.cols[name] = &txCollection{records: records, original: raw}
	}

	// 2. 変更を適用する
	if err := fn(tx); err != nil {
		return err
	}

	// 3. 変更されたコレクションのみ保存する
	var saved []string
	for _, name := range sorted {
		c := tx.cols[name]
		if !c.dirty {
			continue
		}

		data, err := encodeRecords(c.records)
		if err != nil {
			s.rollback(ctx, tx, saved)
			return &Error{Op: "encode", Collection: name, Err: err}
		}

		start := time.Now()
		err = s.backend.Save(ctx, name, data)
		if s.observer != nil {
			s.observer.ObserveSave(name, time.Since(start), err)
		}
		if err != nil {
			s.rollback(ctx, tx, saved)
			return &Error{Op: "save", Collection: name, Err: err}
		}
		saved = append(saved, name)
	}

	return nil
}

// rollback は保存済みのコレクションを読み込み時点の内容に戻す。
func (s *Store) rollback(ctx context.Context, tx *Tx, saved []string) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range saved {
		original := tx.cols[name].original
		if len(bytes.TrimSpace(original)) == 0 {
			original = []byte("[]\n")
		}
		if err := s.backend.Save(ctx, name, original); err != nil {
			s.logger.Error("failed to roll back collection",
				slog.String("collection", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Store) load(ctx context.Context, name string) ([]Record, []byte, error) {
	raw, err := s.backend.Load(ctx, name)
	if err != nil {
		return nil, nil, &Error{Op: "load", Collection: name, Err: err}
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, nil, &Error{Op: "decode", Collection: name, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	return records, raw, nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// decodeRecords は空・空白のみ・null を空コレクションとして扱う。
func decodeRecords(raw []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func encodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// txCollection はトランザクション内のコレクションの状態。
type txCollection struct {
	records  []Record
	original []byte
	dirty    bool
}

// Tx はStore.Update中のコレクションへのアクセスを提供する。
// Updateに渡したコレクション以外にはアクセスできない。
type Tx struct {
	ctx   context.Context
	store *Store
	cols  map[string]*txCollection
}

// Context はUpdateに渡されたコンテキストを返す。
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Records はコレクションの現在のレコードを返す。
func (tx *Tx) Records(name string) ([]Record, error) {
	c, ok := tx.cols[name]
	if !ok {
		return nil, fmt.Errorf("storage: collection %q is not locked by this transaction", name)
	}
	return c.records, nil
}

// Put はコレクションのレコードを置き換え、保存対象としてマークする。
func (tx *Tx) Put(name string, records []Record) error {
	c, ok := tx.cols[name]
	if !ok {
		return fmt.Errorf("storage: collection %q is not locked by this transaction", name)
	}
	c.records = records
	c.dirty = true
	return nil
}

// NextID はコレクション内の既存IDと衝突しない新しいIDを返す。
func (tx *Tx) NextID(name string) (model.ID, error) {
	records, err := tx.Records(name)
	if err != nil {
		return 0, err
	}
	return tx.store.ids.Next(name, MaxID(records)), nil
}

// NewID は namespace 内で floor より大きい新しいIDを返す。
// ユーザーレコード内の通知のように、独立したコレクションを持たないIDに使用する。
func (tx *Tx) NewID(namespace string, floor model.ID) model.ID {
	return tx.store.ids.Next(namespace, floor)
}
