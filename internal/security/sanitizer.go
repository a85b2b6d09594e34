// Package security はユーザー入力と外部コンテンツに対する防御機能を提供する。
//
// 記事本文とコメントはbluemondayの許可リストポリシーでサニタイズし、
// 配信元フィードの取得はsafeurlでプライベートネットワークへの到達を防ぐ。
package security

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLのサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Article は記事本文として許可されたタグのみを残したHTMLを返す。
	Article(rawHTML string) string

	// Comment はタグを全て取り除いたテキストを返す。
	Comment(raw string) string
}

// httpsOnly は画像srcとして許可するURL。
var httpsOnly = regexp.MustCompile(`^https://`)

// htmlSanitizer はSanitizerの実装。ポリシーは生成後に変更しないため並行利用できる。
type htmlSanitizer struct {
	article *bluemonday.Policy
	comment *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
//
// 記事本文のポリシー:
//   - 許可タグ: h2, h3, h4, p, br, a, ul, ol, li, blockquote, strong, em, b, i, u, img, figure, figcaption
//   - aタグ: httpまたはhttpsのhrefのみ。target="_blank" と rel="noopener noreferrer" を付与
//   - imgタグ: httpsのsrcとaltのみ
//
// コメントはStrictPolicyで全てのタグを除去する。
func NewSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h2", "h3", "h4", "p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em", "b", "i", "u",
		"figure", "figcaption",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsOnly).OnElements("img")

	return &htmlSanitizer{
		article: p,
		comment: bluemonday.StrictPolicy(),
	}
}

// Article は記事本文をサニタイズする。
func (s *htmlSanitizer) Article(rawHTML string) string {
	return s.article.Sanitize(rawHTML)
}

// Comment はコメント本文からタグを除去する。
// StrictPolicyはエスケープ済みの実体参照を残すため、表示側でそのまま使用できる。
func (s *htmlSanitizer) Comment(raw string) string {
	return strings.TrimSpace(s.comment.Sanitize(raw))
}

// IsHTTPURL はURLがhttpまたはhttpsの絶対URLかを判定する。
// 画像URLやリンクを保存する前の簡易チェックに使用する。
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
