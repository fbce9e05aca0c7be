package blacket

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"example.com/blacket/internal/lazy"
	"example.com/blacket/internal/sched"
)

type rawBooster struct {
	Active     bool    `json:"active"`
	Time       int64   `json:"time"`
	Multiplier float64 `json:"multiplier"`
	User       idRef   `json:"user"`
}

// Booster: глобальный бустер. active сам гаснет через Duration; при
// уведомлении сервера бустер пересобирается целиком, старый таймер
// отменяется.
type Booster struct {
	c *Client

	Multiplier float64
	Duration   time.Duration

	active  atomic.Bool
	userID  int64
	hasUser bool

	lazy lazy.Resolver
}

func newBooster(c *Client, raw *rawBooster) *Booster {
	b := &Booster{
		c:          c,
		Multiplier: raw.Multiplier,
		Duration:   time.Duration(raw.Time) * time.Millisecond,
		userID:     raw.User.ID,
		hasUser:    raw.User.Set && raw.User.ID != 0,
	}
	b.active.Store(raw.Active)
	return b
}

func (b *Booster) Active() bool { return b.active.Load() }

// User: кто активировал; nil, если никто или ещё не загружен.
func (b *Booster) User() *User {
	if !b.hasUser {
		return nil
	}
	return b.c.Users.peek(b.userID)
}

func (b *Booster) nodeKey() string { return fmt.Sprintf("booster:%p", b) }

func (b *Booster) resolveRefs(ctx context.Context) error {
	return b.lazy.Resolve(ctx, func(ctx context.Context) error {
		if !b.hasUser {
			return nil
		}
		if _, err := b.c.Users.load(ctx, b.userID, false); err != nil {
			return fmt.Errorf("booster: user: %w", err)
		}
		return nil
	})
}

func (b *Booster) edges() []node {
	if u := b.User(); u != nil {
		return []node{u}
	}
	return nil
}

// DataManager: каталог игры и бустер. Предметы статичны и доступны сразу,
// остальное: после Init.
type DataManager struct {
	c   *Client
	log *zap.Logger

	initMu sync.Mutex
	ready  atomic.Bool

	mu         sync.RWMutex
	config     *Config
	booster    *Booster
	credits    []*Credit
	blooks     map[string]*Blook
	rarities   map[string]*Rarity
	packs      map[string]*Pack
	banners    map[string]*Banner
	badges     map[string]*BadgeInfo
	emojis     map[string]*Emoji
	weeklyShop map[string]*WeeklyShopItem
	items      map[string]*Item

	boosterExpiry *sched.Task
}

func newDataManager(c *Client) *DataManager {
	return &DataManager{
		c:             c,
		log:           c.log.Named("data"),
		items:         newItems(c),
		boosterExpiry: sched.NewTask(c.opts.Clock),
	}
}

func (d *DataManager) Ready() bool { return d.ready.Load() }

// Init загружает каталог один раз; повторный вызов ничего не делает.
func (d *DataManager) Init(ctx context.Context) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()
	if d.Ready() {
		return nil
	}
	raw, err := d.fetch(ctx)
	if err != nil {
		return err
	}
	booster := newBooster(d.c, &raw.Booster)
	if err := resolveGraph(ctx, booster); err != nil {
		return err
	}
	d.apply(raw)
	d.setBooster(booster)
	d.ready.Store(true)
	d.log.Info("catalog loaded",
		zap.Int("blooks", len(raw.Blooks)),
		zap.Int("packs", len(raw.Packs)),
		zap.Bool("booster", booster.Active()))
	return nil
}

// Booster: текущий бустер; force перечитывает каталог и заменяет бустер
// новым экземпляром.
func (d *DataManager) Booster(ctx context.Context, force bool) (*Booster, error) {
	if !force {
		d.mu.RLock()
		b := d.booster
		d.mu.RUnlock()
		if b == nil {
			return nil, ErrNotReady
		}
		return b, nil
	}
	raw, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}
	b := newBooster(d.c, &raw.Booster)
	if err := resolveGraph(ctx, b); err != nil {
		return nil, err
	}
	d.setBooster(b)
	return b, nil
}

// setBooster заменяет бустер; таймер старого отменяется, и он больше
// не меняет active.
func (d *DataManager) setBooster(b *Booster) {
	d.mu.Lock()
	d.booster = b
	d.mu.Unlock()

	if !b.Active() {
		d.boosterExpiry.Stop()
		return
	}
	d.boosterExpiry.Schedule(b.Duration, func() {
		b.active.Store(false)
		d.log.Info("booster expired", zap.Float64("multiplier", b.Multiplier))
	})
}

func (d *DataManager) fetch(ctx context.Context) (*rawCatalog, error) {
	var raw rawCatalog
	if err := d.c.rest.Get(ctx, pathData, &raw); err != nil {
		return nil, fmt.Errorf("fetch data: %w", err)
	}
	return &raw, nil
}

func (d *DataManager) apply(raw *rawCatalog) {
	c := d.c
	cfg := raw.Config

	rarities := make(map[string]*Rarity, len(raw.Rarities))
	for name, r := range raw.Rarities {
		rarities[name] = &Rarity{c: c, Name: name, Color: r.Color, Animation: r.Animation, Exp: r.Exp, Wait: r.Wait}
	}
	blooks := make(map[string]*Blook, len(raw.Blooks))
	for name, b := range raw.Blooks {
		blooks[name] = newBlook(c, name, b)
	}
	packs := make(map[string]*Pack, len(raw.Packs))
	for name, p := range raw.Packs {
		packs[name] = &Pack{
			c: c, Name: name, Price: p.Price, Color1: p.Color1, Color2: p.Color2,
			Image: p.Image, Hidden: p.Hidden, BlookNames: p.Blooks,
		}
		for _, bn := range p.Blooks {
			if b, ok := blooks[bn]; ok {
				b.PackName = name
			}
		}
	}
	banners := make(map[string]*Banner, len(raw.Banners))
	for name, b := range raw.Banners {
		banners[name] = &Banner{c: c, Name: name, Image: b.Image}
	}
	badges := make(map[string]*BadgeInfo, len(raw.Badges))
	for name, b := range raw.Badges {
		badges[name] = &BadgeInfo{c: c, Name: name, Description: b.Description, Image: b.Image}
	}
	emojis := make(map[string]*Emoji, len(raw.Emojis))
	for name, e := range raw.Emojis {
		emojis[name] = &Emoji{c: c, Name: name, Image: e.Image}
	}
	weekly := make(map[string]*WeeklyShopItem, len(raw.WeeklyShop))
	for name, w := range raw.WeeklyShop {
		weekly[name] = &WeeklyShopItem{c: c, Name: name, Price: w.Price, Glow: w.Glow}
	}
	credits := make([]*Credit, 0, len(raw.Credits))
	for _, cr := range raw.Credits {
		image, _ := cr.Image.(string)
		credits = append(credits, &Credit{c: c, Nickname: cr.Nickname, Image: image, Note: cr.Note, Top: cr.Top, UserID: cr.User.ID})
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = &cfg
	d.rarities = rarities
	d.blooks = blooks
	d.packs = packs
	d.banners = banners
	d.badges = badges
	d.emojis = emojis
	d.weeklyShop = weekly
	d.credits = credits
}

func (d *DataManager) Config() *Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

func (d *DataManager) Credits() []*Credit {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Credit(nil), d.credits...)
}

func (d *DataManager) Blook(name string) *Blook { return lookup(d, func() map[string]*Blook { return d.blooks }, name) }
func (d *DataManager) Blooks() []*Blook { return values(d, func() map[string]*Blook { return d.blooks }) }

func (d *DataManager) Rarity(name string) *Rarity {
	return lookup(d, func() map[string]*Rarity { return d.rarities }, name)
}
func (d *DataManager) Rarities() []*Rarity { return values(d, func() map[string]*Rarity { return d.rarities }) }

func (d *DataManager) Pack(name string) *Pack { return lookup(d, func() map[string]*Pack { return d.packs }, name) }
func (d *DataManager) Packs() []*Pack { return values(d, func() map[string]*Pack { return d.packs }) }

func (d *DataManager) Banner(name string) *Banner {
	return lookup(d, func() map[string]*Banner { return d.banners }, name)
}
func (d *DataManager) Banners() []*Banner { return values(d, func() map[string]*Banner { return d.banners }) }

func (d *DataManager) Badge(name string) *BadgeInfo {
	return lookup(d, func() map[string]*BadgeInfo { return d.badges }, name)
}
func (d *DataManager) Badges() []*BadgeInfo {
	return values(d, func() map[string]*BadgeInfo { return d.badges })
}

func (d *DataManager) Emoji(name string) *Emoji { return lookup(d, func() map[string]*Emoji { return d.emojis }, name) }
func (d *DataManager) Emojis() []*Emoji { return values(d, func() map[string]*Emoji { return d.emojis }) }

// Item: предметы статичны, доступны и до Init.
func (d *DataManager) Item(name string) *Item { return lookup(d, func() map[string]*Item { return d.items }, name) }
func (d *DataManager) Items() []*Item { return values(d, func() map[string]*Item { return d.items }) }

func (d *DataManager) WeeklyShopItem(name string) *WeeklyShopItem {
	return lookup(d, func() map[string]*WeeklyShopItem { return d.weeklyShop }, name)
}
func (d *DataManager) WeeklyShop() []*WeeklyShopItem {
	return values(d, func() map[string]*WeeklyShopItem { return d.weeklyShop })
}

func lookup[V any](d *DataManager, get func() map[string]*V, name string) *V {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return get()[name]
}

// values: список, отсортированный по имени ключа.
func values[V any](d *DataManager, get func() map[string]*V) []*V {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m := get()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]*V, 0, len(names))
	for _, k := range names {
		out = append(out, m[k])
	}
	return out
}

func (d *DataManager) stop() { d.boosterExpiry.Stop() }
