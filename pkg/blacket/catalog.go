package blacket

import (
	"context"
	"fmt"
	"time"
)

// Игровой каталог из /data/index.json: плоские справочники по имени.

type rawCatalog struct {
	Config     Config                       `json:"config"`
	Booster    rawBooster                   `json:"booster"`
	Credits    []rawCredit                  `json:"credits"`
	Blooks     map[string]rawBlook          `json:"blooks"`
	Rarities   map[string]rawRarity         `json:"rarities"`
	Packs      map[string]rawPack           `json:"packs"`
	Banners    map[string]rawResource       `json:"banners"`
	Badges     map[string]rawBadge          `json:"badges"`
	Emojis     map[string]rawResource       `json:"emojis"`
	WeeklyShop map[string]rawWeeklyShopItem `json:"weekly_shop"`
}

type Config struct {
	Name          string                `json:"name"`
	Version       string                `json:"version"`
	Welcome       string                `json:"welcome"`
	Description   string                `json:"description"`
	Pronunciation string                `json:"pronunciation"`
	Discord       string                `json:"discord"`
	Store         map[string]StoreItem  `json:"store"`
	Rewards       []int64               `json:"rewards"`
	Exp           ExpConfig             `json:"exp"`
	Pages         map[string]ConfigPage `json:"pages"`
	Chat          ChatConfig            `json:"chat"`
	Reports       Reports               `json:"reports"`
}

type StoreItem struct {
	Price string `json:"price"`
	Sale  struct {
		Price string `json:"price"`
		Name  any    `json:"name,omitempty"`
	} `json:"sale"`
}

type ExpConfig struct {
	Difficulty float64 `json:"difficulty"`
}

type ConfigPage struct {
	Link     any    `json:"link,omitempty"`
	Icon     string `json:"icon"`
	IsNews   bool   `json:"isNews"`
	IsChat   bool   `json:"isChat"`
	Location string `json:"location"`
	Perm     string `json:"perm"`
}

type ChatConfig struct {
	Tokens   int64 `json:"tokens"`
	Exp      int64 `json:"exp"`
	Cooldown int64 `json:"cooldown"`
}

type Reports struct {
	User    map[string][]string `json:"user"`
	Message map[string][]string `json:"message"`
}

type rawResource struct {
	Image string `json:"image"`
}

type rawBadge struct {
	Image       string `json:"image"`
	Description string `json:"description"`
}

type BadgeInfo struct {
	c           *Client
	Name        string
	Description string
	Image       string
}

func (b *BadgeInfo) URL() string { return b.c.rest.URL(b.Image) }

type Banner struct {
	c     *Client
	Name  string
	Image string
}

func (b *Banner) URL() string { return b.c.rest.URL(b.Image) }

type Emoji struct {
	c     *Client
	Name  string
	Image string
}

func (e *Emoji) URL() string { return e.c.rest.URL(e.Image) }

type rawRarity struct {
	Color     string  `json:"color"`
	Animation string  `json:"animation"`
	Exp       int64   `json:"exp"`
	Wait      float64 `json:"wait"`
}

type Rarity struct {
	c         *Client
	Name      string
	Color     string
	Animation string
	Exp       int64
	Wait      float64
}

// Blooks: все блуки этой редкости.
func (r *Rarity) Blooks() []*Blook {
	var out []*Blook
	for _, b := range r.c.Data.Blooks() {
		if b.RarityName == r.Name {
			out = append(out, b)
		}
	}
	return out
}

type rawBlook struct {
	Rarity                    string   `json:"rarity"`
	Chance                    float64  `json:"chance"`
	Price                     int64    `json:"price"`
	Image                     string   `json:"image"`
	Art                       string   `json:"art"`
	OnlyOnDay                 *int     `json:"onlyOnDay"`
	BazaarMinimumListingPrice *float64 `json:"bazaarMinimumListingPrice"`
	BazaarMaximumListingPrice *float64 `json:"bazaarMaximumListingPrice"`
}

type Blook struct {
	c          *Client
	Name       string
	RarityName string
	PackName   string
	Chance     float64
	Price      int64
	Image      string
	Art        string

	// OnlyOnDay: день недели, когда блук доступен; nil, всегда.
	OnlyOnDay *time.Weekday
	BazaarMin *float64
	BazaarMax *float64
}

func newBlook(c *Client, name string, raw rawBlook) *Blook {
	b := &Blook{
		c:          c,
		Name:       name,
		RarityName: raw.Rarity,
		Chance:     raw.Chance,
		Price:      raw.Price,
		Image:      raw.Image,
		Art:        raw.Art,
		BazaarMin:  raw.BazaarMinimumListingPrice,
		BazaarMax:  raw.BazaarMaximumListingPrice,
	}
	if raw.OnlyOnDay != nil {
		d := time.Weekday(*raw.OnlyOnDay)
		b.OnlyOnDay = &d
	}
	return b
}

func (b *Blook) Rarity() *Rarity { return b.c.Data.Rarity(b.RarityName) }

// Pack: пак, из которого выпадает блук; nil, если ни из какого.
func (b *Blook) Pack() *Pack {
	if b.PackName == "" {
		return nil
	}
	return b.c.Data.Pack(b.PackName)
}

func (b *Blook) ImageURL() string { return b.c.rest.URL(b.Image) }
func (b *Blook) ArtURL() string   { return b.c.rest.URL(b.Art) }

// Emoji: "[name]", так блук вставляется в чат.
func (b *Blook) Emoji() string { return "[" + b.Name + "]" }

// IsDay: доступен ли блук в указанный день.
func (b *Blook) IsDay(day time.Weekday) bool {
	if b.OnlyOnDay == nil {
		return true
	}
	return *b.OnlyOnDay == day
}

func (b *Blook) IsToday() bool { return b.IsDay(b.c.opts.Clock.Now().Weekday()) }

// CanListAt: цена в пределах лимитов базара (без лимитов: любая).
func (b *Blook) CanListAt(price float64) bool {
	if b.BazaarMin == nil || b.BazaarMax == nil || *b.BazaarMin == 0 || *b.BazaarMax == 0 {
		return true
	}
	return price >= *b.BazaarMin && price <= *b.BazaarMax
}

// Quantity: сколько таких блуков у аккаунта; force перечитывает профиль.
func (b *Blook) Quantity(ctx context.Context, force bool) (int64, error) {
	me, err := b.c.Users.Me(ctx, force)
	if err != nil {
		return 0, err
	}
	return me.BlookCount(b.Name), nil
}

// Sell продаёт quantity штук. Количество и нехватка проверяются локально
// до запроса.
func (b *Blook) Sell(ctx context.Context, quantity int64, force bool) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: sell %s x%d", ErrBadQuantity, b.Name, quantity)
	}
	have, err := b.Quantity(ctx, force)
	if err != nil {
		return err
	}
	if have < quantity {
		return fmt.Errorf("%w: %s (have %d, want %d)", ErrNotEnoughBlooks, b.Name, have, quantity)
	}
	if err := b.c.rest.Post(ctx, pathSell, map[string]any{"blook": b.Name, "quantity": quantity}, nil); err != nil {
		return fmt.Errorf("sell %s: %w", b.Name, err)
	}
	if me, err := b.c.Users.Me(ctx, false); err == nil {
		me.setBlookCount(b.Name, have-quantity)
	}
	return nil
}

type rawPack struct {
	Price  int64    `json:"price"`
	Color1 string   `json:"color1"`
	Color2 string   `json:"color2"`
	Image  string   `json:"image"`
	Blooks []string `json:"blooks"`
	Hidden bool     `json:"hidden"`
}

type Pack struct {
	c          *Client
	Name       string
	Price      int64
	Color1     string
	Color2     string
	Image      string
	Hidden     bool
	BlookNames []string
}

func (p *Pack) URL() string { return p.c.rest.URL(p.Image) }

func (p *Pack) Blooks() []*Blook {
	out := make([]*Blook, 0, len(p.BlookNames))
	for _, name := range p.BlookNames {
		if b := p.c.Data.Blook(name); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Open открывает пак и возвращает выпавший блук.
func (p *Pack) Open(ctx context.Context) (*Blook, error) {
	var resp struct {
		Blook string `json:"blook"`
	}
	if err := p.c.rest.Post(ctx, pathOpen, map[string]string{"pack": p.Name}, &resp); err != nil {
		return nil, fmt.Errorf("open pack %s: %w", p.Name, err)
	}
	b := p.c.Data.Blook(resp.Blook)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlook, resp.Blook)
	}
	return b, nil
}

type rawWeeklyShopItem struct {
	Price int64 `json:"price"`
	Glow  bool  `json:"glow"`
}

type WeeklyShopItem struct {
	c     *Client
	Name  string
	Price int64
	Glow  bool
}

func (w *WeeklyShopItem) Item() *Item { return w.c.Data.Item(w.Name) }

type rawCredit struct {
	Nickname string `json:"nickname"`
	Image    any    `json:"image,omitempty"`
	Note     string `json:"note"`
	Top      bool   `json:"top"`
	User     idRef  `json:"user"`
}

type Credit struct {
	c        *Client
	Nickname string
	Image    string
	Note     string
	Top      bool
	UserID   int64
}

func (cr *Credit) URL() string { return cr.c.rest.URL(cr.Image) }

// User загружает пользователя из титров.
func (cr *Credit) User(ctx context.Context) (*User, error) {
	return cr.c.Users.Fetch(ctx, cr.UserID, false)
}
