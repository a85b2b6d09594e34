package news

import (
	"strings"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/turkish"
)

// ShortTitleLength は kisa_baslik の最大文字数。
const ShortTitleLength = 60

// categorySynonyms は配信元が使う英語カテゴリ名と既存カテゴリの対応。
var categorySynonyms = map[string]string{
	"culture":                 "Kültür",
	"science":                 "Bilim",
	"health":                  "Sağlık",
	"technology":              "Teknoloji",
	"automobile":              "Otomobil",
	"auto":                    "Otomobil",
	"politics":                "Politika",
	"security":                "Güvenlik",
	"space":                   "Uzay",
	"gaming":                  "Oyun",
	"game":                    "Oyun",
	"ai":                      "Yapay Zeka",
	"artificial intelligence": "Yapay Zeka",
	"economy":                 "Ekonomi",
	"business":                "Ekonomi",
	"finance":                 "Ekonomi",
}

// NormalizeCategory はカテゴリ名を登録済みカテゴリのいずれかに揃える。
// 同義語で対応が取れず、登録済みでもない場合は model.DefaultCategory を返す。
func NormalizeCategory(category string, known []string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return model.DefaultCategory
	}
	if mapped, ok := categorySynonyms[turkish.Lower(c)]; ok && containsString(known, mapped) {
		return mapped
	}
	if containsString(known, c) {
		return c
	}
	return model.DefaultCategory
}

var urlJunk = strings.NewReplacer("`", "", `"`, "", `\`, "")

// CleanURL はURL文字列から前後の空白と混入した引用符・バックスラッシュを取り除く。
func CleanURL(raw string) string {
	return urlJunk.Replace(strings.TrimSpace(raw))
}

// NormalizeArticle は保存済み記事の表記揺れを揃える。
// 日時が解析できない場合は now を設定する。
func NormalizeArticle(a *model.Article, known []string, now string) {
	a.Title = strings.TrimSpace(a.Title)
	short := a.ShortTitle
	if strings.TrimSpace(short) == "" {
		short = a.Title
	}
	a.ShortTitle = model.ShortenTitle(short, ShortTitleLength)
	a.Summary = strings.TrimSpace(a.Summary)
	a.ImageURL = CleanURL(a.ImageURL)
	if a.Source != nil {
		a.Source.Name = strings.TrimSpace(a.Source.Name)
		a.Source.LogoURL = CleanURL(a.Source.LogoURL)
		a.Source.SiteURL = CleanURL(a.Source.SiteURL)
	}
	if t, ok := model.ParseTimestamp(a.PublishedAt); ok {
		a.PublishedAt = model.FormatTimestamp(t)
	} else {
		a.PublishedAt = now
	}
	if a.ViewCount < 0 {
		a.ViewCount = 0
	}
	if a.LikeCount < 0 {
		a.LikeCount = 0
	}
	a.Category = NormalizeCategory(a.Category, known)
}

// NormalizeUser はユーザーレコードのリストと画像URLを揃える。
func NormalizeUser(u *model.User) {
	u.Username = strings.TrimSpace(u.Username)
	u.ProfileImage = CleanURL(u.ProfileImage)
	u.EnsureLists()
}

// CategoryNames はカテゴリ名の一覧を返す。
func CategoryNames(categories []model.Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		if n := strings.TrimSpace(c.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
