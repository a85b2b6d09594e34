package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/savsata/gundem/internal/model"
	"github.com/savsata/gundem/internal/repository"
	"github.com/savsata/gundem/internal/security"
	"github.com/savsata/gundem/internal/storage"
)

const seedUsers = `[
	{"id": 1, "kullanici_adi": "alice", "followers": ["bob", "carol", "ghost"], "profil_resmi": "https://cdn.example.com/alice.png"},
	{"id": 2, "kullanici_adi": "bob", "following": ["alice"]},
	{"id": 3, "kullanici_adi": "carol", "following": ["alice"]},
	{"id": 4, "kullanici_adi": "mallory", "is_blocked": true}
]`

const seedNews = `[
	{"id": 10, "baslik": "Faiz kararı", "ozet": "Merkez Bankası", "icerik": "<p>Politika faizi sabit</p>", "kategori": "Ekonomi", "kaynak": {"isim": "Anadolu", "logo": "https://old.example/logo.png"}, "tarih": "2024-03-03T10:00:00.000Z"},
	{"id": 11, "baslik": "Mars görevi", "ozet": "Uzay", "icerik": "<p>Kızıl gezegen</p>", "kategori": "Bilim", "username": "alice", "kaynak": {"isim": "alice"}, "tarih": "2024-03-02T10:00:00.000Z"},
	{"id": 12, "baslik": "Gece hayatı", "ozet": "+18", "icerik": "<p>yetişkin</p>", "kategori": "Gündem", "adult_only": true, "kaynak": {"isim": "Anadolu"}, "tarih": "2024-03-01T10:00:00.000Z"},
	{"id": 13, "baslik": "İstanbul trafiği", "ozet": "Yoğunluk", "icerik": "<p>Köprüde <b>kaza</b></p>", "kategori": "Gündem", "kaynak": {"isim": "Webtekno"}, "tarih": "2024-02-28T10:00:00.000Z"}
]`

func newTestService(t *testing.T, seed map[string]string) (*Service, *storage.Store, *storage.MemoryBackend) {
	t.Helper()
	b := storage.NewMemoryBackend()
	defaults := map[string]string{
		"kullanicilar": seedUsers,
		"haberler":     seedNews,
		"kategoriler":  `[{"id": 1, "ad": "Gündem"}, {"id": 2, "ad": "Ekonomi"}, {"id": 3, "ad": "Bilim"}]`,
		"kaynaklar":    `[{"id": 1, "isim": "Anadolu", "logo": "https://new.example/logo.png"}]`,
	}
	for name, data := range defaults {
		b.Set(name, []byte(data))
	}
	for name, data := range seed {
		b.Set(name, []byte(data))
	}
	store := storage.NewStore(b)

	svc := NewService(store, security.NewSanitizer(), nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) }
	return svc, store, b
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

func viewIDs(views []model.ArticleView) []model.ID {
	out := make([]model.ID, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func equalIDs(a, b []model.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestList_HidesAdultOnlyFromAnonymous は匿名閲覧者に成人向け記事を返さないことを検証する。
func TestList_HidesAdultOnlyFromAnonymous(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	anon, err := svc.List(ctx, ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := viewIDs(anon.Data); !equalIDs(got, []model.ID{10, 11, 13}) {
		t.Errorf("anonymous ids = %v, want [10 11 13]", got)
	}

	signedIn, err := svc.List(ctx, ListQuery{Limit: 10, Viewer: "bob"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if signedIn.Total != 4 {
		t.Errorf("Total = %d, want 4", signedIn.Total)
	}
}

func TestList_Pagination(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	page1, err := svc.List(ctx, ListQuery{Page: 1, Limit: 2, Viewer: "bob"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if !page1.HasMore || len(page1.Data) != 2 || page1.Total != 4 {
		t.Errorf("page1 = {len %d, total %d, hasMore %v}, want {2, 4, true}", len(page1.Data), page1.Total, page1.HasMore)
	}

	page2, err := svc.List(ctx, ListQuery{Page: 2, Limit: 2, Viewer: "bob"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page2.HasMore {
		t.Error("page2 should be the last page")
	}

	beyond, err := svc.List(ctx, ListQuery{Page: 9, Limit: 2, Viewer: "bob"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(beyond.Data) != 0 || beyond.Data == nil {
		t.Errorf("beyond.Data = %v, want empty slice", beyond.Data)
	}
}

func TestList_DefaultLimit(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	page, err := svc.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Page != 1 {
		t.Errorf("Page = %d, want 1", page.Page)
	}
	if len(page.Data) != 3 {
		t.Errorf("len(Data) = %d, want 3", len(page.Data))
	}
}

// TestList_FollowingIgnoresCategory はフォロー中フィルタ指定時にカテゴリを無視することを検証する。
func TestList_FollowingIgnoresCategory(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	page, err := svc.List(context.Background(), ListQuery{
		Limit:     10,
		Category:  "Ekonomi",
		Following: []string{"alice", "Webtekno"},
		Viewer:    "bob",
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := viewIDs(page.Data); !equalIDs(got, []model.ID{11, 13}) {
		t.Errorf("ids = %v, want [11 13]", got)
	}
}

func TestList_CategoryFilter(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	page, err := svc.List(context.Background(), ListQuery{Limit: 10, Category: "Ekonomi"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := viewIDs(page.Data); !equalIDs(got, []model.ID{10}) {
		t.Errorf("ids = %v, want [10]", got)
	}
}

// TestList_RefreshesSourceLogoAndAuthor は配信元ロゴの更新と作成者の種別を検証する。
func TestList_RefreshesSourceLogoAndAuthor(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	page, err := svc.List(context.Background(), ListQuery{Limit: 2})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	first := page.Data[0]
	if first.Source.LogoURL != "https://new.example/logo.png" {
		t.Errorf("logo = %q, want refreshed logo", first.Source.LogoURL)
	}
	if first.Author.Kind != model.AuthorKindSource || first.Author.Name != "Anadolu" {
		t.Errorf("author = %+v, want source Anadolu", first.Author)
	}
	if first.ReadingTime != 1 {
		t.Errorf("ReadingTime = %d, want 1", first.ReadingTime)
	}
	if second := page.Data[1]; second.Author.Kind != model.AuthorKindUser || second.Author.Username != "alice" {
		t.Errorf("author = %+v, want user alice", second.Author)
	}
}

func TestGet(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	v, err := svc.Get(ctx, 11, "")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v.Title != "Mars görevi" {
		t.Errorf("Title = %q, want Mars görevi", v.Title)
	}

	_, err = svc.Get(ctx, 12, "")
	assertAPIErrorCode(t, err, model.ErrCodeAdultContent)

	if _, err := svc.Get(ctx, 12, "bob"); err != nil {
		t.Errorf("signed-in viewer should see adult content: %v", err)
	}

	_, err = svc.Get(ctx, 999, "bob")
	assertAPIErrorCode(t, err, model.ErrCodeNewsNotFound)
}

func TestIncrementView(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		got, err := svc.IncrementView(ctx, 10)
		if err != nil {
			t.Fatalf("IncrementView returned error: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	_, err := svc.IncrementView(ctx, 999)
	assertAPIErrorCode(t, err, model.ErrCodeNewsNotFound)
}

// TestPublish_PrependsAndNotifiesFollowers は公開した記事が先頭に入りフォロワー全員に通知されることを検証する。
func TestPublish_PrependsAndNotifiesFollowers(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()

	a, err := svc.Publish(ctx, PublishInput{
		Username: "alice",
		Title:    "  Yerel seçim sonuçları  ",
		Summary:  "Özet",
		BodyHTML: `<p>Sonuçlar</p><script>alert(1)</script>`,
		Category: "politics",
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if a.Title != "Yerel seçim sonuçları" {
		t.Errorf("Title = %q", a.Title)
	}
	if strings.Contains(a.BodyHTML, "script") {
		t.Errorf("BodyHTML not sanitized: %q", a.BodyHTML)
	}
	if a.ImageURL != model.DefaultImageURL {
		t.Errorf("ImageURL = %q, want default", a.ImageURL)
	}
	if a.Category != model.DefaultCategory {
		t.Errorf("Category = %q, want %q (Politika is not registered)", a.Category, model.DefaultCategory)
	}
	if a.Source == nil || a.Source.LogoURL != "https://cdn.example.com/alice.png" {
		t.Errorf("Source = %+v, want alice's avatar as logo", a.Source)
	}

	all, err := repository.News.List(ctx, store)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if all[0].ID != a.ID {
		t.Errorf("first article = %d, want published %d", all[0].ID, a.ID)
	}

	users, err := repository.Users.List(ctx, store)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	for _, name := range []string{"bob", "carol"} {
		u := users[repository.FindUser(users, name)]
		if len(u.Notifications) != 1 {
			t.Fatalf("%s notifications = %d, want 1", name, len(u.Notifications))
		}
		n := u.Notifications[0]
		if n.Kind != model.NotificationNewArticle || n.NewsID == nil || *n.NewsID != a.ID || n.Title != a.Title {
			t.Errorf("%s notification = %+v", name, n)
		}
	}
}

// TestPublish_SingleSavePerCollection は通知の配信を含めて各コレクションを1回だけ保存することを検証する。
func TestPublish_SingleSavePerCollection(t *testing.T) {
	svc, _, b := newTestService(t, nil)
	saves := map[string]int{}
	b.SaveHook = func(name string) error {
		saves[name]++
		return nil
	}

	if _, err := svc.Publish(context.Background(), PublishInput{Username: "alice", Title: "Başlık"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if saves["haberler"] != 1 || saves["kullanicilar"] != 1 {
		t.Errorf("saves = %v, want haberler:1 kullanicilar:1", saves)
	}
	if saves["kategoriler"] != 0 {
		t.Errorf("kategoriler should not be saved, got %d", saves["kategoriler"])
	}
}

func TestPublish_Reshare(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	orig := model.ID(10)
	a, err := svc.Publish(ctx, PublishInput{Username: "bob", Title: "Paylaşım", OriginalNewsID: &orig})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if a.OriginalNewsID == nil || *a.OriginalNewsID != 10 {
		t.Errorf("OriginalNewsID = %v, want 10", a.OriginalNewsID)
	}

	missing := model.ID(999)
	_, err = svc.Publish(ctx, PublishInput{Username: "bob", Title: "Paylaşım", OriginalNewsID: &missing})
	assertAPIErrorCode(t, err, model.ErrCodeNewsNotFound)
}

func TestPublish_Rejections(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   PublishInput
		code string
	}{
		{"empty title", PublishInput{Username: "alice", Title: "  "}, model.ErrCodeValidation},
		{"bad image", PublishInput{Username: "alice", Title: "x", ImageURL: "javascript:alert(1)"}, model.ErrCodeValidation},
		{"blocked user", PublishInput{Username: "mallory", Title: "x"}, model.ErrCodeForbidden},
		{"unknown user", PublishInput{Username: "ghost", Title: "x"}, model.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Publish(ctx, tt.in)
			assertAPIErrorCode(t, err, tt.code)
		})
	}
}

func TestDeleteOwn(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()

	err := svc.DeleteOwn(ctx, "bob", 11)
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	err = svc.DeleteOwn(ctx, "alice", 999)
	assertAPIErrorCode(t, err, model.ErrCodeNewsNotFound)

	if err := svc.DeleteOwn(ctx, "alice", 11); err != nil {
		t.Fatalf("DeleteOwn returned error: %v", err)
	}
	all, _ := repository.News.List(ctx, store)
	if repository.FindByID(all, 11) >= 0 {
		t.Error("article 11 should be deleted")
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestListByUser_CaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	views, err := svc.ListByUser(context.Background(), "ANADOLU")
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if got := viewIDs(views); !equalIDs(got, []model.ID{10, 12}) {
		t.Errorf("ids = %v, want [10 12]", got)
	}
}

// TestSearch はトルコ語の大文字小文字を区別せず本文テキストも検索対象にすることを検証する。
func TestSearch(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		query  string
		viewer string
		want   []model.ID
	}{
		{"istanbul", "", []model.ID{13}},
		{"KAZA", "", []model.ID{13}},
		{"yetişkin", "", []model.ID{}},
		{"yetişkin", "bob", []model.ID{12}},
		{"strong", "", []model.ID{}},
		{"", "", []model.ID{}},
	}
	for _, tt := range tests {
		views, err := svc.Search(ctx, tt.query, tt.viewer)
		if err != nil {
			t.Fatalf("Search(%q) returned error: %v", tt.query, err)
		}
		if got := viewIDs(views); !equalIDs(got, tt.want) {
			t.Errorf("Search(%q, %q) = %v, want %v", tt.query, tt.viewer, got, tt.want)
		}
	}
}

func TestSearch_LimitsResults(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 1; i <= 15; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id": %d, "baslik": "Deprem haberi %d", "ozet": "", "icerik": ""}`, i, i)
	}
	b.WriteString("]")
	svc, _, _ := newTestService(t, map[string]string{"haberler": b.String()})

	views, err := svc.Search(context.Background(), "deprem", "")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(views) != searchLimit {
		t.Errorf("len(views) = %d, want %d", len(views), searchLimit)
	}
}

// TestToggleLike_SelfInverseAndCountMatchesMembership はいいねの切り替えが自己逆であり、
// いいね数が常にいいねしたユーザー数と一致することを検証する。
func TestToggleLike_SelfInverseAndCountMatchesMembership(t *testing.T) {
	svc, store, _ := newTestService(t, map[string]string{
		"kullanicilar": `[
			{"id": 1, "kullanici_adi": "alice", "begendigi_haberler": [10]},
			{"id": 2, "kullanici_adi": "bob"}
		]`,
		"haberler": `[{"id": 10, "baslik": "x", "begeni_sayisi": 57}]`,
	})
	ctx := context.Background()

	r, err := svc.ToggleLike(ctx, "bob", 10)
	if err != nil {
		t.Fatalf("ToggleLike returned error: %v", err)
	}
	if !r.IsLiked || r.NewCount != 2 {
		t.Errorf("first toggle = %+v, want {true 2}", r)
	}

	r, err = svc.ToggleLike(ctx, "bob", 10)
	if err != nil {
		t.Fatalf("ToggleLike returned error: %v", err)
	}
	if r.IsLiked || r.NewCount != 1 {
		t.Errorf("second toggle = %+v, want {false 1}", r)
	}

	all, _ := repository.News.List(ctx, store)
	if all[0].LikeCount != 1 {
		t.Errorf("stored begeni_sayisi = %d, want 1", all[0].LikeCount)
	}
	users, _ := repository.Users.List(ctx, store)
	if len(users[1].LikedNewsIDs) != 0 {
		t.Errorf("bob likes = %v, want empty", users[1].LikedNewsIDs)
	}
}

func TestToggleLike_Errors(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ToggleLike(ctx, "bob", 999)
	assertAPIErrorCode(t, err, model.ErrCodeNewsNotFound)

	_, err = svc.ToggleLike(ctx, "ghost", 10)
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestCategories(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	cats, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories returned error: %v", err)
	}
	if len(cats) != 3 || cats[0].Name != "Gündem" {
		t.Errorf("categories = %+v", cats)
	}
}

// TestNormalize はデータセット全体の正規化で件数が返り、カテゴリが揃えられることを検証する。
func TestNormalize(t *testing.T) {
	svc, store, _ := newTestService(t, map[string]string{
		"haberler": `[
			{"id": 1, "baslik": " a ", "kategori": "science", "editor_notu": "kalsın"},
			{"id": "2", "baslik": "b", "kategori": "Ekonomi", "resim_url": " https://x.example/i.png "}
		]`,
	})
	ctx := context.Background()

	res, err := svc.Normalize(ctx)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if res.News != 2 || res.Users != 4 {
		t.Errorf("result = %+v, want {2 4}", res)
	}

	all, _ := repository.News.List(ctx, store)
	if all[0].Category != "Bilim" || all[0].Title != "a" || all[0].ShortTitle != "a" {
		t.Errorf("first = %+v", all[0])
	}
	if all[1].ID != 2 || all[1].ImageURL != "https://x.example/i.png" {
		t.Errorf("second = %+v", all[1])
	}

	rows, err := repository.NewTable(store).List(ctx, "haberler")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if string(rows[0]["editor_notu"]) != `"kalsın"` {
		t.Errorf("unknown key lost: %s", rows[0]["editor_notu"])
	}
}
