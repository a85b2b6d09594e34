// Package model はドメインモデルを定義する。
//
// JSONタグは既存データファイル（kullanicilar.json 等）のキー名に合わせている。
package model

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理画面の操作が可能なユーザー。
	RoleAdmin Role = "admin"
)

// DefaultAvatarURL はプロフィール画像未設定のユーザーに使用する画像。
const DefaultAvatarURL = "https://cdn-icons-png.flaticon.com/512/3135/3135715.png"

// User はサービス利用ユーザーを表す。
// Followers/Following は「AがBのFollowingに含まれる ⇔ BがAのFollowersに含まれる」を常に満たす。
type User struct {
	ID            ID                `json:"id"`
	Username      string            `json:"kullanici_adi"`
	Password      string            `json:"sifre"`
	Email         string            `json:"email"`
	Birthdate     string            `json:"dogum_tarihi"`
	Role          Role              `json:"role"`
	IsBlocked     bool              `json:"is_blocked"`
	ProfileImage  string            `json:"profil_resmi"`
	Bio           string            `json:"bio"`
	SocialLinks   map[string]string `json:"socialLinks"`
	Followers     []string          `json:"followers"`
	Following     []string          `json:"following"`
	LikedNewsIDs  []ID              `json:"begendigi_haberler"`
	SavedNewsIDs  []ID              `json:"saved_articles"`
	Notifications []Notification    `json:"bildirimler"`
}

// EntityID はレコードIDを返す。
func (u *User) EntityID() ID { return u.ID }

// IsAdmin は管理者権限を持つかを返す。
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// EnsureLists はnilのリストを空スライスに置き換える。
// 保存時に null ではなく [] を書き出すために使用する。
func (u *User) EnsureLists() {
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	if u.LikedNewsIDs == nil {
		u.LikedNewsIDs = []ID{}
	}
	if u.SavedNewsIDs == nil {
		u.SavedNewsIDs = []ID{}
	}
	if u.Notifications == nil {
		u.Notifications = []Notification{}
	}
	if u.SocialLinks == nil {
		u.SocialLinks = map[string]string{}
	}
}

// PublicUser はパスワード等を除いた公開用のユーザー情報。
type PublicUser struct {
	ID             ID                `json:"id"`
	Username       string            `json:"kullanici_adi"`
	Role           Role              `json:"role"`
	ProfileImage   string            `json:"profil_resmi"`
	Bio            string            `json:"bio"`
	SocialLinks    map[string]string `json:"socialLinks"`
	Followers      []string          `json:"followers"`
	Following      []string          `json:"following"`
	FollowerCount  int               `json:"followerCount"`
	FollowingCount int               `json:"followingCount"`
	IsBlocked      bool              `json:"is_blocked"`
}

// Public はユーザーの公開用表現を返す。
func (u *User) Public() PublicUser {
	c := *u
	c.EnsureLists()
	return PublicUser{
		ID:             c.ID,
		Username:       c.Username,
		Role:           c.Role,
		ProfileImage:   c.ProfileImage,
		Bio:            c.Bio,
		SocialLinks:    c.SocialLinks,
		Followers:      c.Followers,
		Following:      c.Following,
		FollowerCount:  len(c.Followers),
		FollowingCount: len(c.Following),
		IsBlocked:      c.IsBlocked,
	}
}

// UserSummary はユーザー検索・一覧で返す最小限の情報。
type UserSummary struct {
	Username     string `json:"kullanici_adi"`
	ProfileImage string `json:"profil_resmi"`
	Bio          string `json:"bio"`
}

// Summary はユーザーの概要を返す。プロフィール画像が未設定の場合はデフォルト画像を使う。
func (u *User) Summary() UserSummary {
	img := u.ProfileImage
	if img == "" {
		img = DefaultAvatarURL
	}
	return UserSummary{Username: u.Username, ProfileImage: img, Bio: u.Bio}
}

// SelfUser は本人に返すユーザー情報。パスワードのみを除く。
type SelfUser struct {
	PublicUser
	Email         string         `json:"email"`
	Birthdate     string         `json:"dogum_tarihi"`
	LikedNewsIDs  []ID           `json:"begendigi_haberler"`
	SavedNewsIDs  []ID           `json:"saved_articles"`
	Notifications []Notification `json:"bildirimler"`
}

// Self は本人向けのユーザー表現を返す。
func (u *User) Self() SelfUser {
	c := *u
	c.EnsureLists()
	return SelfUser{
		PublicUser:    c.Public(),
		Email:         c.Email,
		Birthdate:     c.Birthdate,
		LikedNewsIDs:  c.LikedNewsIDs,
		SavedNewsIDs:  c.SavedNewsIDs,
		Notifications: c.Notifications,
	}
}

// NotificationKind は通知の種別を表す。
type NotificationKind string

const (
	// NotificationNewArticle はフォロー中のユーザーが記事を公開したことを示す。
	NotificationNewArticle NotificationKind = "yeni_haber"
	// NotificationCommentReply は自分のコメントに返信があったことを示す。
	NotificationCommentReply NotificationKind = "yorum_yaniti"
	// NotificationDirectMessage はダイレクトメッセージを受信したことを示す。
	NotificationDirectMessage NotificationKind = "mesaj"
)

// Notification はユーザーレコード内に保持される通知を表す。
// 新しいものが先頭に並ぶ。
type Notification struct {
	ID     ID               `json:"id"`
	Kind   NotificationKind `json:"tip"`
	Actor  string           `json:"yazar"`
	NewsID *ID              `json:"haber_id,omitempty"`
	Title  string           `json:"baslik,omitempty"`
	Date   string           `json:"tarih"`
	Read   bool             `json:"okundu"`
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        ID     `json:"id"`
	Token     string `json:"token"`
	Username  string `json:"kullanici_adi"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

// EntityID はレコードIDを返す。
func (s *Session) EntityID() ID { return s.ID }
