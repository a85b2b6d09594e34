package model

// PollOption は投票の選択肢を表す。
type PollOption struct {
	ID        ID     `json:"id"`
	Text      string `json:"metin"`
	VoteCount int    `json:"oy_sayisi"`
}

// Poll は記事に紐づく投票を表す。
// Votersに含まれるユーザーは再投票できない。
type Poll struct {
	ID       ID           `json:"id"`
	NewsID   ID           `json:"haber_id"`
	Question string       `json:"soru"`
	Options  []PollOption `json:"secenekler"`
	Voters   []string     `json:"oy_kullananlar"`
}

// EntityID はレコードIDを返す。
func (p *Poll) EntityID() ID { return p.ID }

// HasVoted はユーザーが投票済みかを返す。
func (p *Poll) HasVoted(username string) bool {
	for _, v := range p.Voters {
		if v == username {
			return true
		}
	}
	return false
}

// EnsureLists はnilのリストを空スライスに置き換える。
func (p *Poll) EnsureLists() {
	if p.Options == nil {
		p.Options = []PollOption{}
	}
	if p.Voters == nil {
		p.Voters = []string{}
	}
}
