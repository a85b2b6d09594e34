// Package turkish はトルコ語の大文字小文字とURLスラッグの変換を提供する。
package turkish

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lower はトルコ語の規則で小文字化する（I→ı, İ→i）。
// cases.Caser は状態を持つため呼び出しごとに生成する。
func Lower(s string) string {
	return cases.Lower(language.Turkish).String(s)
}

// Contains は大文字小文字を区別せずに部分一致を判定する。
func Contains(s, substr string) bool {
	return strings.Contains(Lower(s), Lower(substr))
}

var asciiFold = strings.NewReplacer(
	"ş", "s", "Ş", "s",
	"ç", "c", "Ç", "c",
	"ö", "o", "Ö", "o",
	"ğ", "g", "Ğ", "g",
	"ü", "u", "Ü", "u",
	"ı", "i", "İ", "i",
)

// Slug はタイトルをURL用のスラッグに変換する。
// トルコ語の文字をASCIIに置き換え、英数字以外を除いて空白をハイフンにまとめる。
func Slug(title string) string {
	folded := strings.ToLower(asciiFold.Replace(title))

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return b.String()
}
