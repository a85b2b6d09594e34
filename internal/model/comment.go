package model

// Comment は記事へのコメントを表す。
// ParentIDが同じ記事のコメントを指す場合は返信として扱う。
type Comment struct {
	ID       ID     `json:"id"`
	NewsID   ID     `json:"haber_id"`
	Username string `json:"kullanici_adi"`
	Body     string `json:"icerik"`
	Date     string `json:"tarih"`
	ParentID *ID    `json:"parent_id"`
}

// EntityID はレコードIDを返す。
func (c *Comment) EntityID() ID { return c.ID }

// HasParent は親コメントの参照を持つかを返す。
func (c *Comment) HasParent() bool {
	return c.ParentID != nil && *c.ParentID != 0
}

// ThreadNode はスレッド表示用のコメントノード。
type ThreadNode struct {
	Comment
	Replies []*ThreadNode `json:"replies"`
}

// ThreadIssueKind はスレッド構築時に検出した整合性問題の種別。
type ThreadIssueKind string

const (
	// ThreadIssueCycle は親参照が循環していたことを示す。
	ThreadIssueCycle ThreadIssueKind = "cycle"
	// ThreadIssueDepthExceeded は最大深さを超えたため平坦化したことを示す。
	ThreadIssueDepthExceeded ThreadIssueKind = "depth_exceeded"
)

// ThreadIssue はスレッド構築時の整合性警告。
type ThreadIssue struct {
	Kind      ThreadIssueKind `json:"kind"`
	CommentID ID              `json:"commentId"`
}

// UserComment はユーザー履歴に表示するコメント。
type UserComment struct {
	Comment
	NewsTitle string `json:"haber_baslik"`
}
