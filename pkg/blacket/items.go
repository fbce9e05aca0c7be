package blacket

import (
	"context"
	"fmt"
	"strings"
)

type Item struct {
	c           *Client
	Name        string
	Description string
	Image       string
	Color       string
	// Price: 0, если предмет не продаётся.
	Price int64
}

func (it *Item) URL() string { return it.c.rest.URL(it.Image) }

// Use применяет предмет и возвращает ответ сервера.
func (it *Item) Use(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := it.c.rest.Post(ctx, pathUse, map[string]string{"item": it.Name}, &resp); err != nil {
		return "", fmt.Errorf("use %s: %w", it.Name, err)
	}
	return resp.Message, nil
}

type staticItem struct {
	image, description, color string
	price                     int64
}

func paintBucket(color, css string, price int64) staticItem {
	return staticItem{
		image:       "/content/items/" + color + " Paint Bucket.webp",
		description: "Use this to change your clan color to " + strings.ToLower(color) + "! You will not lose this item after using it.",
		color:       css,
		price:       price,
	}
}

// Предметы не приходят в /data/index.json, таблица захардкожена.
var staticItems = map[string]staticItem{
	"1 Hour Booster": {
		image:       "/content/items/1 Hour Booster.webp",
		description: "Boost <b>all</b> the chances of blooks by 1.5x to 2x <b>more</b> for <b>EVERYONE!</b> This booster lasts for <b>1 hour.</b>",
		color:       "linear-gradient(320deg, rgb(0, 129, 255) 0%, rgb(0, 133, 207) 25%, rgb(0, 224, 255) 100%)",
		price:       100000,
	},
	"3 Hour Booster": {
		image:       "/content/items/3 Hour Booster.webp",
		description: "Boost <b>all</b> the chances of blooks by 2x <b>more</b> for <b>EVERYONE!</b> This booster lasts for <b>3 hours.</b>",
		color:       "linear-gradient(320deg, rgba(164,107,0,1) 0%, rgba(218,149,0,1) 25%, rgba(255,179,0,1) 100%)",
		price:       250000,
	},
	"24 Hour Booster": {
		image:       "/content/items/24 Hour Booster.webp",
		description: "Boost <b>all</b> the chances of blooks by 2x <b>more</b> for <b>EVERYONE!</b> This booster lasts for <b>24 hours.</b>",
		color:       "linear-gradient(320deg, red, orange, yellow, lime, cyan, magenta)",
		price:       1000000,
	},
	"Stealth Disguise Kit (Item)": {
		image:       "/content/items/Stealth Disguise Kit.webp",
		description: "Hide your clan name while attacking other clans!",
		color:       "linear-gradient(320deg, #72787D, #35393C)",
		price:       250000,
	},
	fragmentGrenade: {
		image:       "/content/items/Fragment Grenade.webp",
		description: "Throw one at a clan that isn't shielded to steal some of their investments!",
		color:       "linear-gradient(320deg, #437658, #254C34)",
		price:       100000,
	},
	"Clan Shield": {
		image:       "/content/items/Clan Shield.webp",
		description: "Protects your investments from being stolen by Fragment Grenades! (If the clan is attacked, the shield will break)",
		color:       "linear-gradient(320deg, #70CFF1, #488EA8)",
		price:       100000,
	},
	"Red Paint Bucket":     paintBucket("Red", "linear-gradient(320deg, #FF0000, #B30000)", 125000),
	"Orange Paint Bucket":  paintBucket("Orange", "linear-gradient(320deg, #FF8000, #B35900)", 0),
	"Yellow Paint Bucket":  paintBucket("Yellow", "linear-gradient(320deg, #FFFF00, #B3B300)", 0),
	"Green Paint Bucket":   paintBucket("Green", "linear-gradient(320deg, #006400, #008C00)", 115000),
	"Lime Paint Bucket":    paintBucket("Lime", "linear-gradient(320deg, #80FF00, #59B300)", 0),
	"Cyan Paint Bucket":    paintBucket("Cyan", "linear-gradient(320deg, #00FFFF, #00B3B3)", 0),
	"Blue Paint Bucket":    paintBucket("Blue", "linear-gradient(320deg, #0000FF, #0000B3)", 120000),
	"Purple Paint Bucket":  paintBucket("Purple", "linear-gradient(320deg, #8000FF, #5900B3)", 0),
	"Magenta Paint Bucket": paintBucket("Magenta", "linear-gradient(320deg, #FF00FF, #B300B3)", 0),
	"Pink Paint Bucket":    paintBucket("Pink", "linear-gradient(320deg, #D780D3, #B359B3)", 0),
	"Brown Paint Bucket":   paintBucket("Brown", "linear-gradient(320deg, #804000, #593000)", 0),
	"Black Paint Bucket":   paintBucket("Black", "linear-gradient(320deg, #0C0C0C, #1C1C1C)", 0),
	"Rainbow Paint Bucket": paintBucket("Rainbow", "linear-gradient(320deg, red, orange, yellow, lime, cyan, magenta, violet)", 0),
}

func newItems(c *Client) map[string]*Item {
	out := make(map[string]*Item, len(staticItems))
	for name, s := range staticItems {
		out[name] = &Item{
			c:           c,
			Name:        name,
			Description: s.description,
			Image:       s.image,
			Color:       s.color,
			Price:       s.price,
		}
	}
	return out
}
