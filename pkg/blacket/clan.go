package blacket

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"example.com/blacket/internal/lazy"
	"example.com/blacket/internal/store"
	"example.com/blacket/pkg/rest"
)

const fragmentGrenade = "Fragment Grenade (Item)"

// ClanMember: участник в том виде, в каком он приходит внутри клана.
type ClanMember struct {
	ID       int64
	Username string
	Color    string
	Avatar   string
}

type rawClanMember struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Avatar   string `json:"avatar"`
}

type rawClan struct {
	ID          flexID          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	Image       string          `json:"image"`
	Created     int64           `json:"created"`
	Exp         int64           `json:"exp"`
	Owner       *rawClanMember  `json:"owner"`
	Members     []rawClanMember `json:"members"`
	Safe        bool            `json:"safe"`
	Online      int             `json:"online"`
	Offline     int             `json:"offline"`
	Sent        bool            `json:"sent"`
}

type Clan struct {
	c *Client

	ID          int64
	Name        string
	Description string
	Color       string
	Image       string
	Created     time.Time
	Exp         int64
	Safe        bool
	Online      int
	Offline     int
	Sent        bool

	ownerID int64
	members []ClanMember

	lazy lazy.Resolver
}

func newClan(c *Client, raw *rawClan) *Clan {
	cl := &Clan{
		c:           c,
		ID:          int64(raw.ID),
		Name:        raw.Name,
		Description: raw.Description,
		Color:       raw.Color,
		Image:       raw.Image,
		Created:     fromMillis(raw.Created),
		Exp:         raw.Exp,
		Safe:        raw.Safe,
		Online:      raw.Online,
		Offline:     raw.Offline,
		Sent:        raw.Sent,
	}
	if raw.Owner != nil {
		cl.ownerID = int64(raw.Owner.ID)
	}
	for _, m := range raw.Members {
		cl.members = append(cl.members, ClanMember{
			ID:       int64(m.ID),
			Username: m.Username,
			Color:    m.Color,
			Avatar:   m.Avatar,
		})
	}
	return cl
}

func (cl *Clan) OwnerID() int64 { return cl.ownerID }

func (cl *Clan) Owner() *User {
	if cl.ownerID == 0 {
		return nil
	}
	return cl.c.Users.peek(cl.ownerID)
}

// MemberStubs: участники без загрузки профилей.
func (cl *Clan) MemberStubs() []ClanMember { return slices.Clone(cl.members) }

func (cl *Clan) MemberIDs() []int64 {
	ids := make([]int64, 0, len(cl.members))
	for _, m := range cl.members {
		ids = append(ids, m.ID)
	}
	return ids
}

func (cl *Clan) Members() []*User {
	out := make([]*User, 0, len(cl.members))
	for _, m := range cl.members {
		if u := cl.c.Users.peek(m.ID); u != nil {
			out = append(out, u)
		}
	}
	return out
}

func (cl *Clan) ImageURL() string { return cl.c.rest.URL(cl.Image) }

// Attack бросает в клан Fragment Grenade. Свой клан отклоняется локально,
// без запроса к серверу.
func (cl *Clan) Attack(ctx context.Context) (string, error) {
	me := cl.c.Users.me.Load()
	if me == nil {
		return "", ErrNotReady
	}
	if own := me.ClanStub(); own != nil && own.ID == cl.ID {
		return "", ErrOwnClan
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := cl.c.rest.Post(ctx, pathUse, map[string]any{"item": fragmentGrenade, "clan": cl.ID}, &resp); err != nil {
		return "", fmt.Errorf("attack clan %d: %w", cl.ID, err)
	}
	return resp.Message, nil
}

func (cl *Clan) Resolved() bool { return cl.lazy.Resolved() }

// Resolve загружает владельца и участников.
func (cl *Clan) Resolve(ctx context.Context) error { return resolveGraph(ctx, cl) }

func (cl *Clan) nodeKey() string { return "clan:" + idKey(cl.ID) }

func (cl *Clan) resolveRefs(ctx context.Context) error {
	return cl.lazy.Resolve(ctx, func(ctx context.Context) error {
		ids := cl.MemberIDs()
		if cl.ownerID != 0 {
			ids = append(ids, cl.ownerID)
		}
		err := loadAll(ctx, ids, func(ctx context.Context, id int64) error {
			_, err := cl.c.Users.load(ctx, id, false)
			return err
		})
		if err != nil {
			return fmt.Errorf("clan %d: %w", cl.ID, err)
		}
		return nil
	})
}

func (cl *Clan) edges() []node {
	var out []node
	if o := cl.Owner(); o != nil {
		out = append(out, o)
	}
	for _, m := range cl.Members() {
		out = append(out, m)
	}
	return out
}

type ClanManager struct {
	c     *Client
	log   *zap.Logger
	store *store.Store[int64, *Clan]
	group singleflight.Group
}

func newClanManager(c *Client) *ClanManager {
	return &ClanManager{
		c:     c,
		log:   c.log.Named("clans"),
		store: store.New[int64, *Clan](),
	}
}

// Get: только кэш; nil, если клана там нет.
func (m *ClanManager) Get(id int64) *Clan {
	cl, _ := m.store.Get(id)
	return cl
}

func (m *ClanManager) Values() []*Clan { return m.store.Values() }

// Fetch: fetch-or-cache. Несуществующий клан: (nil, nil).
func (m *ClanManager) Fetch(ctx context.Context, id int64, force bool) (*Clan, error) {
	cl, err := m.load(ctx, id, force)
	if err != nil || cl == nil {
		return nil, err
	}
	if err := resolveGraph(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

func (m *ClanManager) load(ctx context.Context, id int64, force bool) (*Clan, error) {
	if !force {
		if cl := m.Get(id); cl != nil {
			return cl, nil
		}
	}
	v, err := share(ctx, &m.group, flightKey(idKey(id), force), func(ctx context.Context) (any, error) {
		if !force {
			if cl := m.Get(id); cl != nil {
				return cl, nil
			}
		}
		var raw rawClan
		err := m.c.rest.Get(ctx, pathClan(id), &raw)
		if rest.IsReason(err, clanNotFoundReasons...) {
			m.log.Debug("clan not found", zap.Int64("id", id))
			return (*Clan)(nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch clan %d: %w", id, err)
		}
		cl := newClan(m.c, &raw)
		if force {
			m.store.Replace(cl.ID, cl)
			return cl, nil
		}
		stored, _ := m.store.Add(cl.ID, cl)
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	cl, _ := v.(*Clan)
	return cl, nil
}
