package inspect

import (
	"time"

	"example.com/blacket/internal/archive"
	"example.com/blacket/pkg/blacket"
)

// JSON-представления сущностей. Ссылки отдаются id, чтобы циклы
// user -> clan -> members не раскручивались.

type clanRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type userView struct {
	ID       int64            `json:"id"`
	Username string           `json:"username"`
	Role     string           `json:"role"`
	Color    string           `json:"color"`
	Avatar   string           `json:"avatar"`
	Badges   []blacket.Badge  `json:"badges"`
	Tokens   int64            `json:"tokens"`
	Exp      int64            `json:"exp"`
	Created  time.Time        `json:"created"`
	Clan     *clanRef         `json:"clan,omitempty"`
	Friends  []int64          `json:"friends"`
	Blooks   map[string]int64 `json:"blooks"`
	Muted    bool             `json:"muted"`
	Banned   bool             `json:"banned"`
	Resolved bool             `json:"resolved"`
}

func newUserView(u *blacket.User) userView {
	v := userView{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Color:    u.Color,
		Avatar:   u.AvatarURL(),
		Badges:   u.Badges,
		Tokens:   u.Tokens,
		Exp:      u.Exp,
		Created:  u.Created,
		Friends:  u.FriendIDs(),
		Blooks:   u.Blooks(),
		Muted:    u.IsMuted(),
		Banned:   u.IsBanned(),
		Resolved: u.Resolved(),
	}
	if cs := u.ClanStub(); cs != nil {
		v.Clan = &clanRef{ID: cs.ID, Name: cs.Name}
	}
	return v
}

type privateUserView struct {
	userView
	OTP        bool     `json:"otp"`
	MoneySpent float64  `json:"moneySpent"`
	Blocks     []int64  `json:"blocks"`
	Inventory  []string `json:"inventory"`
	Perms      []string `json:"perms"`
}

func newPrivateUserView(p *blacket.PrivateUser) privateUserView {
	return privateUserView{
		userView:   newUserView(&p.User),
		OTP:        p.OTP,
		MoneySpent: p.MoneySpent,
		Blocks:     p.Blocks,
		Inventory:  p.Inventory,
		Perms:      p.Perms,
	}
}

type clanView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	Exp         int64   `json:"exp"`
	Owner       int64   `json:"owner"`
	Members     []int64 `json:"members"`
	Online      int     `json:"online"`
	Offline     int     `json:"offline"`
	Resolved    bool    `json:"resolved"`
}

func newClanView(cl *blacket.Clan) clanView {
	return clanView{
		ID:          cl.ID,
		Name:        cl.Name,
		Description: cl.Description,
		Color:       cl.Color,
		Exp:         cl.Exp,
		Owner:       cl.OwnerID(),
		Members:     cl.MemberIDs(),
		Online:      cl.Online,
		Offline:     cl.Offline,
		Resolved:    cl.Resolved(),
	}
}

type roomView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Pending int    `json:"pending"`
}

type messageView struct {
	ID       int64     `json:"id"`
	Room     int64     `json:"room"`
	Author   int64     `json:"author"`
	Content  string    `json:"content"`
	Mentions []string  `json:"mentions"`
	Date     time.Time `json:"date"`
	Edited   bool      `json:"edited"`
	Deleted  bool      `json:"deleted"`
	Edits    []string  `json:"edits"`
	Current  int       `json:"current"`
}

func newMessageView(m *blacket.Message) messageView {
	v := messageView{
		ID:       m.ID,
		Author:   m.AuthorID(),
		Content:  m.Content(),
		Mentions: m.Mentions(),
		Date:     m.Date,
		Edited:   m.Edited(),
		Deleted:  m.Deleted(),
		Edits:    m.Edits(),
		Current:  m.CurrentEdit(),
	}
	if r := m.Room(); r != nil {
		v.Room = r.ID
	}
	return v
}

type boosterView struct {
	Active     bool    `json:"active"`
	Multiplier float64 `json:"multiplier"`
	DurationMS int64   `json:"durationMs"`
	User       *int64  `json:"user,omitempty"`
	Username   string  `json:"username,omitempty"`
}

func newBoosterView(b *blacket.Booster) boosterView {
	v := boosterView{
		Active:     b.Active(),
		Multiplier: b.Multiplier,
		DurationMS: b.Duration.Milliseconds(),
	}
	if u := b.User(); u != nil {
		v.User = &u.ID
		v.Username = u.Username
	}
	return v
}

type archivedView struct {
	ID       int64     `json:"id"`
	RoomName string    `json:"roomName"`
	Author   int64     `json:"author"`
	Original string    `json:"original"`
	Content  string    `json:"content"`
	Date     time.Time `json:"date"`
	Edited   bool      `json:"edited"`
	Deleted  bool      `json:"deleted"`
}

func newArchivedView(r *archive.Record) archivedView {
	return archivedView{
		ID:       r.ID,
		RoomName: r.RoomName,
		Author:   r.Author,
		Original: r.Original,
		Content:  r.Content,
		Date:     r.Date,
		Edited:   r.Edited,
		Deleted:  r.Deleted,
	}
}
