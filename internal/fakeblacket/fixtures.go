package fakeblacket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/blacket/pkg/socket"
)

// User: JSON пользователя; clan 0: без клана.
func User(id int64, name string, clan int64, friends ...int64) string {
	c := "null"
	if clan != 0 {
		c = fmt.Sprintf(`{"id": %d, "name": "clan%d", "color": "#fff"}`, clan, clan)
	}
	fs := []byte("[]")
	if len(friends) > 0 {
		fs, _ = json.Marshal(friends)
	}
	return fmt.Sprintf(`{"id": %d, "username": %q, "badges": [], "blooks": {}, "clan": %s, "friends": %s}`,
		id, name, c, fs)
}

// Clan: JSON клана; первый участник: владелец.
func Clan(id int64, name string, members ...int64) string {
	type ref struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	refs := make([]ref, 0, len(members))
	for _, m := range members {
		refs = append(refs, ref{ID: m, Username: fmt.Sprintf("user%d", m)})
	}
	var owner any
	if len(refs) > 0 {
		owner = refs[0]
	}
	b, _ := json.Marshal(map[string]any{
		"id": id, "name": name, "description": "", "owner": owner,
		"members": refs, "online": len(refs), "offline": 0,
	})
	return string(b)
}

// Data: минимальный каталог с бустером.
func Data(boosterActive bool) string {
	return fmt.Sprintf(`{
	"config": {"name": "Blacket"},
	"booster": {"active": %t, "time": 3600000, "multiplier": 2, "user": {"id": %d}},
	"credits": [],
	"blooks": {"Dog": {"rarity": "Common", "chance": 100, "price": 5}},
	"rarities": {"Common": {"color": "#fff"}},
	"packs": {}, "banners": {}, "badges": {}, "emojis": {}, "weekly_shop": {}
}`, boosterActive, MeID)
}

// MessageData: data кадра messages-create/messages-ack.
func MessageData(id, author, room int64, roomName, content string) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"id": id, "user": author, "room": room, "content": content,
			"mentions": []any{}, "date": time.Now().UnixMilli(),
		},
		"author": map[string]any{"id": author},
		"room":   map[string]any{"id": room, "name": roomName},
	}
}

func Frame(event string, data any) map[string]any {
	return map[string]any{"error": false, "event": event, "data": data}
}

func MessageCreate(id, author, room int64, content string) map[string]any {
	return Frame(socket.EventMessageCreate, MessageData(id, author, room, "global", content))
}

func MessageEdit(id int64, content string) map[string]any {
	return Frame(socket.EventMessageEdit, map[string]any{"message": id, "content": content})
}

func MessageDelete(id int64) map[string]any {
	return Frame(socket.EventMessageDelete, map[string]any{"message": id})
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
