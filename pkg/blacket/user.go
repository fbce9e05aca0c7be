package blacket

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"example.com/blacket/internal/lazy"
	"example.com/blacket/internal/store"
	"example.com/blacket/pkg/rest"
)

type Badge string

const (
	BadgeSixMonthVeteran        Badge = "6 Month Veteran"
	BadgeTwelveMonthVeteran     Badge = "12 Month Veteran"
	BadgeEighteenMonthVeteran   Badge = "18 Month Veteran"
	BadgeTwentyFourMonthVeteran Badge = "24 Month Veteran"
	BadgeArtist                 Badge = "Artist"
	BadgeBigSpender             Badge = "Big Spender"
	BadgeBlacktuber             Badge = "Blacktuber"
	BadgeBooster                Badge = "Booster"
	BadgeCoOwner                Badge = "Co-Owner"
	BadgeDeveloper              Badge = "Developer"
	BadgeFullOfLard             Badge = "full of lard"
	BadgeFullOfToken            Badge = "full of token"
	BadgeKangooro               Badge = "kangooro"
	BadgeLegacyAnkh             Badge = "Legacy Ankh"
	BadgeOG                     Badge = "OG"
	BadgeOwner                  Badge = "Owner"
	BadgePlus                   Badge = "Plus"
	BadgeStaff                  Badge = "Staff"
	BadgeTester                 Badge = "Tester"
	BadgeVerified               Badge = "Verified"
	BadgeVerifiedBot            Badge = "Verified Bot"
)

type Mute struct {
	Muted  bool `json:"muted"`
	Staff  any  `json:"staff,omitempty"`
	Reason any  `json:"reason,omitempty"`
}

type Ban struct {
	Banned bool   `json:"banned"`
	Staff  string `json:"staff"`
	Reason string `json:"reason"`
	Time   int64  `json:"time"`
}

type Misc struct {
	Opened   int64 `json:"opened"`
	Messages int64 `json:"messages"`
}

// ClanStub: клан в том виде, в каком он приходит внутри пользователя.
type ClanStub struct {
	ID    int64
	Name  string
	Color string
	Room  int64
}

type rawClanStub struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Room  flexID `json:"room"`
}

type rawUser struct {
	ID       flexID           `json:"id"`
	Username string           `json:"username"`
	Created  int64            `json:"created"`
	Modified int64            `json:"modified"`
	Avatar   string           `json:"avatar"`
	Banner   string           `json:"banner"`
	Badges   []string         `json:"badges"`
	Blooks   map[string]int64 `json:"blooks"`
	Tokens   int64            `json:"tokens"`
	Clan     *rawClanStub     `json:"clan"`
	Role     string           `json:"role"`
	Color    string           `json:"color"`
	Exp      int64            `json:"exp"`
	Mute     Mute             `json:"mute"`
	Ban      Ban              `json:"ban"`
	Misc     Misc             `json:"misc"`
	Friends  []flexID         `json:"friends"`
}

type Settings struct {
	Friends  string `json:"friends"`
	Requests string `json:"requests"`
}

type rawPrivateUser struct {
	rawUser
	OTP        bool     `json:"otp"`
	MoneySpent float64  `json:"moneySpent"`
	Settings   Settings `json:"settings"`
	Blocks     []flexID `json:"blocks"`
	Claimed    string   `json:"claimed"`
	Inventory  []string `json:"inventory"`
	Perms      []string `json:"perms"`
}

// User: игрок. Скалярные поля заполнены сразу; клан и друзья хранятся
// как id и отдаются через менеджеры, так что force-обновление клана
// сразу видно из всех пользователей.
type User struct {
	c *Client

	ID       int64
	Username string
	Created  time.Time
	Modified time.Time
	Avatar   string
	Banner   string
	Badges   []Badge
	Tokens   int64
	Role     string
	Color    string
	Exp      int64
	Mute     Mute
	Ban      Ban
	Misc     Misc

	clan      *ClanStub
	friendIDs []int64

	mu     sync.RWMutex
	blooks map[string]int64

	lazy lazy.Resolver
}

func newUser(c *Client, raw *rawUser) *User {
	u := &User{}
	u.fill(c, raw)
	return u
}

func (u *User) fill(c *Client, raw *rawUser) {
	u.c = c
	u.ID = int64(raw.ID)
	u.Username = raw.Username
	u.Created = fromMillis(raw.Created)
	u.Modified = fromMillis(raw.Modified)
	u.Avatar = raw.Avatar
	u.Banner = raw.Banner
	u.Tokens = raw.Tokens
	u.Role = raw.Role
	u.Color = raw.Color
	u.Exp = raw.Exp
	u.Mute = raw.Mute
	u.Ban = raw.Ban
	u.Misc = raw.Misc
	u.blooks = make(map[string]int64, len(raw.Blooks))
	for _, b := range raw.Badges {
		u.Badges = append(u.Badges, Badge(b))
	}
	for k, v := range raw.Blooks {
		u.blooks[k] = v
	}
	if raw.Clan != nil && raw.Clan.ID != 0 {
		u.clan = &ClanStub{
			ID:    int64(raw.Clan.ID),
			Name:  raw.Clan.Name,
			Color: raw.Clan.Color,
			Room:  int64(raw.Clan.Room),
		}
	}
	for _, id := range raw.Friends {
		u.friendIDs = append(u.friendIDs, int64(id))
	}
}

// ClanStub: данные клана из профиля; nil, если клана нет.
func (u *User) ClanStub() *ClanStub { return u.clan }

// Clan: загруженный клан пользователя (nil до Resolve или если клана нет).
func (u *User) Clan() *Clan {
	if u.clan == nil {
		return nil
	}
	return u.c.Clans.Get(u.clan.ID)
}

func (u *User) FriendIDs() []int64 { return slices.Clone(u.friendIDs) }

// Friends: загруженные друзья; не найденные на сервере пропускаются.
func (u *User) Friends() []*User {
	out := make([]*User, 0, len(u.friendIDs))
	for _, id := range u.friendIDs {
		if f := u.c.Users.peek(id); f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (u *User) Blooks() map[string]int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[string]int64, len(u.blooks))
	for k, v := range u.blooks {
		out[k] = v
	}
	return out
}

func (u *User) BlookCount(name string) int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.blooks[name]
}

func (u *User) setBlookCount(name string, n int64) {
	u.mu.Lock()
	u.blooks[name] = n
	u.mu.Unlock()
}

func (u *User) AvatarURL() string { return u.c.rest.URL(u.Avatar) }
func (u *User) BannerURL() string { return u.c.rest.URL(u.Banner) }

func (u *User) IsMuted() bool     { return u.Mute.Muted }
func (u *User) IsBanned() bool    { return u.Ban.Banned }
func (u *User) IsStaff() bool     { return u.HasBadge(BadgeStaff) }
func (u *User) IsTester() bool    { return u.HasBadge(BadgeTester) }
func (u *User) IsDeveloper() bool { return u.HasBadge(BadgeDeveloper) }
func (u *User) IsVerified() bool  { return u.HasBadge(BadgeVerified) }
func (u *User) IsPlus() bool      { return u.HasBadge(BadgePlus) }

// IsOwner: владелец или совладелец игры.
func (u *User) IsOwner() bool { return u.HasBadge(BadgeOwner) || u.HasBadge(BadgeCoOwner) }

func (u *User) HasBadge(b Badge) bool { return slices.Contains(u.Badges, b) }

// VeteranLevel в месяцах: 12, 18, 24, иначе 6.
func (u *User) VeteranLevel() int {
	switch {
	case u.HasBadge(BadgeTwelveMonthVeteran):
		return 12
	case u.HasBadge(BadgeEighteenMonthVeteran):
		return 18
	case u.HasBadge(BadgeTwentyFourMonthVeteran):
		return 24
	}
	return 6
}

func (u *User) Resolved() bool { return u.lazy.Resolved() }

// Resolve загружает клан и друзей (и всё, что достижимо из них).
func (u *User) Resolve(ctx context.Context) error { return resolveGraph(ctx, u) }

func (u *User) nodeKey() string { return "user:" + idKey(u.ID) }

func (u *User) resolveRefs(ctx context.Context) error {
	return u.lazy.Resolve(ctx, func(ctx context.Context) error {
		var clanIDs []int64
		if u.clan != nil {
			clanIDs = []int64{u.clan.ID}
		}
		err := loadAll(ctx, clanIDs, func(ctx context.Context, id int64) error {
			_, err := u.c.Clans.load(ctx, id, false)
			return err
		})
		if err != nil {
			return fmt.Errorf("user %d: clan: %w", u.ID, err)
		}
		err = loadAll(ctx, u.friendIDs, func(ctx context.Context, id int64) error {
			_, err := u.c.Users.load(ctx, id, false)
			return err
		})
		if err != nil {
			return fmt.Errorf("user %d: friends: %w", u.ID, err)
		}
		return nil
	})
}

func (u *User) edges() []node {
	var out []node
	if cl := u.Clan(); cl != nil {
		out = append(out, cl)
	}
	for _, f := range u.Friends() {
		out = append(out, f)
	}
	return out
}

// PrivateUser: аккаунт, под которым залогинен клиент.
type PrivateUser struct {
	User

	OTP        bool
	MoneySpent float64
	Settings   Settings
	Blocks     []int64
	Claimed    string
	Inventory  []string
	Perms      []string
}

func newPrivateUser(c *Client, raw *rawPrivateUser) *PrivateUser {
	p := &PrivateUser{
		OTP:        raw.OTP,
		MoneySpent: raw.MoneySpent,
		Settings:   raw.Settings,
		Claimed:    raw.Claimed,
		Inventory:  raw.Inventory,
		Perms:      raw.Perms,
	}
	p.User.fill(c, &raw.rawUser)
	for _, id := range raw.Blocks {
		p.Blocks = append(p.Blocks, int64(id))
	}
	return p
}

// UserManager: кэш пользователей. Требует однократного Init (загрузка
// своего профиля) до любых запросов.
type UserManager struct {
	c     *Client
	log   *zap.Logger
	store *store.Store[int64, *User]
	group singleflight.Group

	initMu sync.Mutex
	me     atomic.Pointer[PrivateUser]
}

func newUserManager(c *Client) *UserManager {
	return &UserManager{
		c:     c,
		log:   c.log.Named("users"),
		store: store.New[int64, *User](),
	}
}

func (m *UserManager) Ready() bool { return m.me.Load() != nil }

// Init загружает свой профиль. Повторный вызов: ErrAlreadyInitialized.
func (m *UserManager) Init(ctx context.Context) (*PrivateUser, error) {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.Ready() {
		return nil, ErrAlreadyInitialized
	}
	p, err := m.fetchMe(ctx)
	if err != nil {
		return nil, err
	}
	m.store.Replace(p.ID, &p.User)
	m.me.Store(p)
	m.log.Info("logged in", zap.Int64("id", p.ID), zap.String("username", p.Username))
	return p, nil
}

// Me: свой профиль; force перечитывает его с сервера и заменяет в кэше.
func (m *UserManager) Me(ctx context.Context, force bool) (*PrivateUser, error) {
	if !m.Ready() {
		return nil, ErrNotReady
	}
	if !force {
		return m.me.Load(), nil
	}
	v, err := share(ctx, &m.group, "me", func(ctx context.Context) (any, error) {
		p, err := m.fetchMe(ctx)
		if err != nil {
			return nil, err
		}
		m.store.Replace(p.ID, &p.User)
		m.me.Store(p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PrivateUser), nil
}

// Get читает только кэш. Вызов до Init паникует (ошибка программиста).
func (m *UserManager) Get(id int64) *User {
	if !m.Ready() {
		panic(ErrNotReady)
	}
	return m.peek(id)
}

func (m *UserManager) GetByName(name string) *User {
	if !m.Ready() {
		panic(ErrNotReady)
	}
	u, _ := m.store.Find(func(u *User) bool { return u.Username == name })
	return u
}

func (m *UserManager) Values() []*User { return m.store.Values() }

// Fetch: fetch-or-cache по id. Не найден: (nil, nil).
func (m *UserManager) Fetch(ctx context.Context, id int64, force bool) (*User, error) {
	if !m.Ready() {
		return nil, ErrNotReady
	}
	u, err := m.load(ctx, id, force)
	if err != nil || u == nil {
		return nil, err
	}
	if err := resolveGraph(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (m *UserManager) FetchByName(ctx context.Context, name string, force bool) (*User, error) {
	if !m.Ready() {
		return nil, ErrNotReady
	}
	if !force {
		if u := m.GetByName(name); u != nil {
			if err := resolveGraph(ctx, u); err != nil {
				return nil, err
			}
			return u, nil
		}
	}
	v, err := share(ctx, &m.group, flightKey("name:"+strings.ToLower(name), force), func(ctx context.Context) (any, error) {
		raw, err := m.fetchRaw(ctx, name)
		if err != nil || raw == nil {
			return (*User)(nil), err
		}
		return m.put(newUser(m.c, raw), force), nil
	})
	if err != nil {
		return nil, err
	}
	u, _ := v.(*User)
	if u == nil {
		return nil, nil
	}
	if err := resolveGraph(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (m *UserManager) peek(id int64) *User {
	u, _ := m.store.Get(id)
	return u
}

// load: один REST-запрос на id даже при конкурентных вызовах; сущность
// кладётся в кэш до resolve.
func (m *UserManager) load(ctx context.Context, id int64, force bool) (*User, error) {
	if !force {
		if u := m.peek(id); u != nil {
			return u, nil
		}
	}
	v, err := share(ctx, &m.group, flightKey(idKey(id), force), func(ctx context.Context) (any, error) {
		if !force {
			if u := m.peek(id); u != nil {
				return u, nil
			}
		}
		raw, err := m.fetchRaw(ctx, idKey(id))
		if err != nil || raw == nil {
			return (*User)(nil), err
		}
		return m.put(newUser(m.c, raw), force), nil
	})
	if err != nil {
		return nil, err
	}
	u, _ := v.(*User)
	return u, nil
}

func (m *UserManager) put(u *User, force bool) *User {
	if force {
		m.store.Replace(u.ID, u)
		return u
	}
	stored, _ := m.store.Add(u.ID, u)
	return stored
}

func (m *UserManager) fetchRaw(ctx context.Context, idOrName string) (*rawUser, error) {
	var resp struct {
		User *rawUser `json:"user"`
	}
	err := m.c.rest.Get(ctx, pathUser(idOrName), &resp)
	if rest.IsReason(err, userNotFoundReasons...) {
		m.log.Debug("user not found", zap.String("user", idOrName))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", idOrName, err)
	}
	return resp.User, nil
}

func (m *UserManager) fetchMe(ctx context.Context) (*PrivateUser, error) {
	var resp struct {
		User *rawPrivateUser `json:"user"`
	}
	if err := m.c.rest.Get(ctx, pathUser(""), &resp); err != nil {
		return nil, fmt.Errorf("fetch me: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("fetch me: empty response")
	}
	return newPrivateUser(m.c, resp.User), nil
}

func flightKey(key string, force bool) string {
	if force {
		return "force:" + key
	}
	return key
}
