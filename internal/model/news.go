package model

import "strings"

// DefaultCategory はカテゴリが未指定または未知の場合に割り当てるカテゴリ。
const DefaultCategory = "Gündem"

// DefaultImageURL は画像未指定の記事に設定するプレースホルダー画像。
const DefaultImageURL = "https://via.placeholder.com/600x400"

// SourceRef は配信元サイトの情報を表す。
type SourceRef struct {
	Name    string `json:"isim"`
	LogoURL string `json:"logo"`
	SiteURL string `json:"link"`
}

// Article はニュース記事を表す。
// 作成者はUsernameが設定されていればユーザー、そうでなければSourceの配信元として扱う。
type Article struct {
	ID             ID         `json:"id"`
	Title          string     `json:"baslik"`
	ShortTitle     string     `json:"kisa_baslik"`
	Summary        string     `json:"ozet"`
	BodyHTML       string     `json:"icerik"`
	ImageURL       string     `json:"resim_url"`
	Category       string     `json:"kategori"`
	Username       string     `json:"username,omitempty"`
	Source         *SourceRef `json:"kaynak,omitempty"`
	AdultOnly      bool       `json:"adult_only"`
	PublishedAt    string     `json:"tarih"`
	ViewCount      int        `json:"goruntulenme"`
	LikeCount      int        `json:"begeni_sayisi"`
	OriginalNewsID *ID        `json:"originalNewsId,omitempty"`
}

// EntityID はレコードIDを返す。
func (a *Article) EntityID() ID { return a.ID }

// AuthorKind は記事作成者の種別を表す。
type AuthorKind string

const (
	// AuthorKindUser はユーザーが公開した記事。
	AuthorKindUser AuthorKind = "user"
	// AuthorKindSource は外部配信元から取り込んだ記事。
	AuthorKindSource AuthorKind = "source"
)

// Author は記事作成者のタグ付き表現。
// Kindに応じてUsernameまたはName/LogoURL/SiteURLのいずれかが設定される。
type Author struct {
	Kind     AuthorKind `json:"kind"`
	Username string     `json:"username,omitempty"`
	Name     string     `json:"name,omitempty"`
	LogoURL  string     `json:"logoUrl,omitempty"`
	SiteURL  string     `json:"siteUrl,omitempty"`
}

// DisplayName はフォロー判定や一覧表示に用いる作成者名を返す。
func (a Author) DisplayName() string {
	if a.Kind == AuthorKindUser {
		return a.Username
	}
	return a.Name
}

// Author は記事の作成者を返す。
func (a *Article) Author() Author {
	if a.Username != "" {
		return Author{Kind: AuthorKindUser, Username: a.Username}
	}
	author := Author{Kind: AuthorKindSource}
	if a.Source != nil {
		author.Name = a.Source.Name
		author.LogoURL = a.Source.LogoURL
		author.SiteURL = a.Source.SiteURL
	}
	return author
}

// IsAuthoredBy はユーザーが記事の作成者かを返す。
func (a *Article) IsAuthoredBy(username string) bool {
	return a.Username != "" && a.Username == username
}

// ShortenTitle は一覧表示用の短縮タイトルをルーン単位で切り出す。
func ShortenTitle(title string, max int) string {
	title = strings.TrimSpace(title)
	r := []rune(title)
	if len(r) <= max {
		return title
	}
	return string(r[:max])
}

// ArticleView はAPIレスポンス用の記事表現。
// 作成者のタグ付き表現と読了時間（分）を付与する。
type ArticleView struct {
	Article
	Author      Author `json:"author"`
	ReadingTime int    `json:"readingTime"`
}

// ArticlePage はページネーション付き記事一覧を表す。
type ArticlePage struct {
	Data    []ArticleView `json:"data"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	HasMore bool          `json:"hasMore"`
}

// Category は記事カテゴリを表す。
type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"ad"`
}

// EntityID はレコードIDを返す。
func (c *Category) EntityID() ID { return c.ID }

// Source は管理画面で登録される配信元を表す。
// FeedURLが設定されている配信元は定期取り込みの対象になる。
type Source struct {
	ID      ID     `json:"id"`
	Name    string `json:"isim"`
	SiteURL string `json:"url"`
	LogoURL string `json:"logo"`
	FeedURL string `json:"rss,omitempty"`
}

// EntityID はレコードIDを返す。
func (s *Source) EntityID() ID { return s.ID }
