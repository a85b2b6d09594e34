package news

import (
	"strings"

	"golang.org/x/net/html"
)

// wordsPerMinute は読了時間の計算に用いる1分あたりの語数。
const wordsPerMinute = 200

// PlainText は記事本文のHTMLからテキストのみを取り出す。
// script/style要素の中身は含めない。
func PlainText(rawHTML string) string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))

	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF 以外のエラーでもそれまでのテキストを返す。
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			if isRawTextTag(z) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isRawTextTag(z) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// ReadingTime は本文の語数から読了時間（分）を求める。最低1分。
func ReadingTime(rawHTML string) int {
	words := len(strings.Fields(PlainText(rawHTML)))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
