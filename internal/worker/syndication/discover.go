package syndication

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// maxDiscoverBodySize はフィード検出で読み込むHTMLの上限。
const maxDiscoverBodySize = 2 * 1024 * 1024

// feedCandidate はHTMLの <link rel="alternate"> から見つかったフィード。
type feedCandidate struct {
	url  string
	atom bool
}

var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// Discoverer は配信元のサイトURLからフィードURLとロゴを推測する。
type Discoverer struct {
	guard FeedGuard
}

// NewDiscoverer はDiscovererを生成する。
func NewDiscoverer(guard FeedGuard) *Discoverer {
	return &Discoverer{guard: guard}
}

// DiscoverFeed はサイトURLを取得し、フィードそのものであればそのURLを、
// HTMLであれば head 内のフィードリンクから最適なものを返す。
// 見つからない場合は Reason が feed_not_found の *FetchError を返す。
func (d *Discoverer) DiscoverFeed(ctx context.Context, siteURL string) (string, error) {
	if err := d.guard.ValidateURL(siteURL); err != nil {
		return "", &FetchError{Reason: "blocked_url", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return "", &FetchError{Reason: "bad_request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := d.guard.Client().Do(req)
	if err != nil {
		return "", &FetchError{Reason: "http_error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{Reason: "http_status", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoverBodySize))
	if err != nil {
		return "", &FetchError{Reason: "read_error", Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if isDirectFeed(contentType, body) {
		return siteURL, nil
	}
	if !strings.Contains(mediaType(contentType), "html") {
		return "", &FetchError{Reason: "feed_not_found"}
	}

	best := selectBestFeed(parseFeedLinks(body, siteURL), siteURL)
	if best == nil {
		return "", &FetchError{Reason: "feed_not_found"}
	}
	return best.url, nil
}

// DiscoverLogo はサイトの /favicon.ico が画像として取得できればそのURLを返す。
// 取得できない場合は空文字列を返す。
func (d *Discoverer) DiscoverLogo(ctx context.Context, siteURL string) string {
	faviconURL := guessFaviconURL(siteURL)
	if faviconURL == "" || d.guard.ValidateURL(faviconURL) != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, faviconURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.guard.Client().Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscoverBodySize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}
	if !strings.HasPrefix(mediaType(resp.Header.Get("Content-Type")), "image/") {
		return ""
	}
	return faviconURL
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// isDirectFeed はレスポンスがRSS/Atomそのものかを判定する。
// 汎用XMLのContent-Typeではボディ先頭のルート要素を確認する。
func isDirectFeed(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	for _, ct := range feedContentTypes {
		if mt == ct {
			return true
		}
	}

	isXML := false
	for _, ct := range xmlContentTypes {
		if mt == ct {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	// 先頭4KBにXMLプロローグとルート要素が含まれる
	n := len(body)
	if n > 4096 {
		n = 4096
	}
	prefix := strings.ToLower(string(body[:n]))
	switch {
	case strings.Contains(prefix, "<rss"), strings.Contains(prefix, "<rdf:rdf"):
		return true
	case strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom"):
		return true
	}
	return false
}

// parseFeedLinks は head 内の <link rel="alternate"> からフィード候補を集める。
// 相対URLはbaseURLで解決する。
func parseFeedLinks(body []byte, baseURL string) []feedCandidate {
	var out []feedCandidate

	base, err := url.Parse(baseURL)
	if err != nil {
		return out
	}

	z := html.NewTokenizer(bytes.NewReader(body))
	inHead := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return out
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, typ, href string
			for {
				key, val, more := z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			out = append(out, feedCandidate{
				url:  base.ResolveReference(ref).String(),
				atom: typ == "application/atom+xml",
			})

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return out
			}
		}
	}
}

// selectBestFeed は同一ホスト、Atom、先頭の順で候補を選ぶ。
func selectBestFeed(candidates []feedCandidate, siteURL string) *feedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	host := hostOf(siteURL)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.url) == host {
			score += 100
		}
		if c.atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &candidates[best]
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func guessFaviconURL(siteURL string) string {
	if siteURL == "" {
		return ""
	}
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Path = "/favicon.ico"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
