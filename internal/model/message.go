package model

// Message はユーザー間のダイレクトメッセージを表す。
type Message struct {
	ID        ID     `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// EntityID はレコードIDを返す。
func (m *Message) EntityID() ID { return m.ID }

// Conversation は会話一覧の1行を表す。
type Conversation struct {
	User        UserSummary `json:"user"`
	LastMessage Message     `json:"lastMessage"`
	UnreadCount int         `json:"unread"`
}

// Visit はアクセスログの1件を表す。
type Visit struct {
	ID        ID     `json:"id"`
	IP        string `json:"ip"`
	URL       string `json:"url"`
	Method    string `json:"method"`
	UserAgent string `json:"userAgent"`
	Timestamp string `json:"timestamp"`
}

// EntityID はレコードIDを返す。
func (v *Visit) EntityID() ID { return v.ID }
