package blacket

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/blacket/internal/pending"
	"example.com/blacket/internal/store"
	"example.com/blacket/pkg/socket"
)

const (
	GlobalRoomID   int64 = 0
	GlobalRoomName       = "global"
)

// Room: чат-комната. Держит отправки, которые ждут messages-ack.
type Room struct {
	c *Client

	ID   int64
	Name string

	pending *pending.Map[*Message]
}

type sendPayload struct {
	Room      int64  `json:"room"`
	Content   string `json:"content"`
	CustomKey string `json:"customKey"`
}

// Send отправляет сообщение и ждёт подтверждения с тем же customKey.
// Ожидание снимается отменой ctx, Options.AckTimeout или разрывом соединения.
func (r *Room) Send(ctx context.Context, content string) (*Message, error) {
	key := newCustomKey()
	ch := r.pending.Register(key)

	if err := r.c.socket.Emit(socket.EventMessageCreate, sendPayload{Room: r.ID, Content: content, CustomKey: key}); err != nil {
		r.pending.Cancel(key)
		return nil, fmt.Errorf("send to room %d: %w", r.ID, err)
	}

	if t := r.c.opts.AckTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	msg, err := r.pending.Wait(ctx, key, ch)
	if err != nil {
		return nil, fmt.Errorf("send to room %d: %w", r.ID, err)
	}
	return msg, nil
}

// Pending: сколько отправок ждут подтверждения.
func (r *Room) Pending() int { return r.pending.Len() }

func newCustomKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
}

type RoomManager struct {
	c     *Client
	log   *zap.Logger
	store *store.Store[int64, *Room]
}

func newRoomManager(c *Client) *RoomManager {
	m := &RoomManager{
		c:     c,
		log:   c.log.Named("rooms"),
		store: store.New[int64, *Room](),
	}
	m.GetOrCreate(GlobalRoomID, GlobalRoomName)
	return m
}

func (m *RoomManager) Get(id int64) *Room {
	r, _ := m.store.Get(id)
	return r
}

// GetOrCreate: одна и та же комната на id; name используется только при создании.
func (m *RoomManager) GetOrCreate(id int64, name string) *Room {
	r, created := m.store.GetOrCreate(id, func() *Room {
		return &Room{c: m.c, ID: id, Name: name, pending: pending.New[*Message]()}
	})
	if created {
		m.log.Debug("room created", zap.Int64("id", id), zap.String("name", name))
	}
	return r
}

func (m *RoomManager) Global() *Room { return m.Get(GlobalRoomID) }

func (m *RoomManager) Values() []*Room { return m.store.Values() }

// claim забирает ожидание key: сначала в комнате из кадра, потом перебором.
func (m *RoomManager) claim(roomID int64, key string) (func(*Message, error), bool) {
	if r := m.Get(roomID); r != nil {
		if deliver, ok := r.pending.Claim(key); ok {
			return deliver, true
		}
	}
	for _, r := range m.store.Values() {
		if deliver, ok := r.pending.Claim(key); ok {
			return deliver, true
		}
	}
	return nil, false
}

func (m *RoomManager) failAll(err error) int {
	n := 0
	for _, r := range m.store.Values() {
		n += r.pending.FailAll(err)
	}
	return n
}
