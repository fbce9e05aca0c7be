package blacket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"example.com/blacket/internal/lazy"
	"example.com/blacket/internal/store"
)

type rawMessageData struct {
	ID       flexID            `json:"id"`
	User     flexID            `json:"user"`
	Room     flexID            `json:"room"`
	Content  string            `json:"content"`
	Mentions []json.RawMessage `json:"mentions"`
	Edited   bool              `json:"edited"`
	Deleted  bool              `json:"deleted"`
	Date     int64             `json:"date"`
}

type rawRoom struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

type rawAuthor struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
}

// rawMessage: полезная нагрузка messages-create и messages-ack.
type rawMessage struct {
	Message rawMessageData `json:"message"`
	Author  rawAuthor      `json:"author"`
	Room    rawRoom        `json:"room"`
}

// Message: сообщение чата. История правок только растёт: конструктор
// кладёт исходный текст, каждая правка добавляет новый, курсор указывает
// на последний элемент.
type Message struct {
	c *Client

	ID   int64
	Date time.Time

	room     *Room
	authorID int64
	mentions []string

	mu      sync.RWMutex
	content string
	edited  bool
	deleted bool
	edits   []string
	current int

	lazy lazy.Resolver
}

// newMessage не делает I/O: комната берётся get-or-create из менеджера.
func newMessage(c *Client, raw *rawMessage) *Message {
	roomID := int64(raw.Room.ID)
	if raw.Room.ID == 0 && raw.Message.Room != 0 {
		roomID = int64(raw.Message.Room)
	}
	authorID := int64(raw.Author.ID)
	if authorID == 0 {
		authorID = int64(raw.Message.User)
	}
	m := &Message{
		c:        c,
		ID:       int64(raw.Message.ID),
		Date:     fromMillis(raw.Message.Date),
		room:     c.Rooms.GetOrCreate(roomID, raw.Room.Name),
		authorID: authorID,
		content:  raw.Message.Content,
		edited:   raw.Message.Edited,
		deleted:  raw.Message.Deleted,
		edits:    []string{raw.Message.Content},
	}
	for _, rm := range raw.Message.Mentions {
		m.mentions = append(m.mentions, mentionID(rm))
	}
	return m
}

func mentionID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var ref idRef
	if json.Unmarshal(raw, &ref) == nil && ref.Set {
		return strconv.FormatInt(ref.ID, 10)
	}
	return string(raw)
}

func (m *Message) Room() *Room { return m.room }

func (m *Message) AuthorID() int64 { return m.authorID }

// Author: загруженный автор; nil, если сервер его не нашёл.
func (m *Message) Author() *User { return m.c.Users.peek(m.authorID) }

// Mentions: id упомянутых пользователей.
func (m *Message) Mentions() []string { return slices.Clone(m.mentions) }

func (m *Message) Content() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.content
}

func (m *Message) Edited() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.edited
}

func (m *Message) Deleted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deleted
}

// Edits: все версии текста, от исходной до текущей.
func (m *Message) Edits() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.edits)
}

func (m *Message) CurrentEdit() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Message) applyEdit(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
	m.edited = true
	m.edits = append(m.edits, content)
	m.current = len(m.edits) - 1
}

func (m *Message) markDeleted() {
	m.mu.Lock()
	m.deleted = true
	m.mu.Unlock()
}

// Reply отправляет ответ в ту же комнату с упоминанием автора и ждёт
// подтверждения. quote: цитировать исходное сообщение.
func (m *Message) Reply(ctx context.Context, content string, quote bool) (*Message, error) {
	body := fmt.Sprintf("<@%d> %s", m.authorID, content)
	if quote {
		body = fmt.Sprintf("From <@%d>: %s\n<@%d> %s", m.authorID, m.Content(), m.authorID, content)
	}
	return m.room.Send(ctx, body)
}

func (m *Message) Edit(ctx context.Context, content string) error {
	if err := m.c.rest.Post(ctx, pathMessageEdit(m.ID), map[string]string{"content": content}, nil); err != nil {
		return fmt.Errorf("edit message %d: %w", m.ID, err)
	}
	return nil
}

func (m *Message) Delete(ctx context.Context) error {
	if err := m.c.rest.Post(ctx, pathMessageDelete(m.ID), nil, nil); err != nil {
		return fmt.Errorf("delete message %d: %w", m.ID, err)
	}
	return nil
}

func (m *Message) Resolved() bool { return m.lazy.Resolved() }

// Resolve загружает автора (и всё, что достижимо из него).
func (m *Message) Resolve(ctx context.Context) error { return resolveGraph(ctx, m) }

func (m *Message) nodeKey() string { return "message:" + idKey(m.ID) }

func (m *Message) resolveRefs(ctx context.Context) error {
	return m.lazy.Resolve(ctx, func(ctx context.Context) error {
		if m.authorID == 0 {
			return nil
		}
		if _, err := m.c.Users.load(ctx, m.authorID, false); err != nil {
			return fmt.Errorf("message %d: author: %w", m.ID, err)
		}
		return nil
	})
}

func (m *Message) edges() []node {
	if a := m.Author(); a != nil {
		return []node{a}
	}
	return nil
}

type MessageManager struct {
	c     *Client
	log   *zap.Logger
	store *store.Store[int64, *Message]
	group singleflight.Group
}

func newMessageManager(c *Client) *MessageManager {
	return &MessageManager{
		c:     c,
		log:   c.log.Named("messages"),
		store: store.New[int64, *Message](),
	}
}

// Get: только кэш; сообщения попадают туда из сокета.
func (m *MessageManager) Get(id int64) *Message {
	msg, _ := m.store.Get(id)
	return msg
}

func (m *MessageManager) Len() int { return m.store.Len() }

func (m *MessageManager) Values() []*Message { return m.store.Values() }

// ingest строит сообщение из кадра, полностью резолвит и только потом кладёт
// в кэш. create и ack одного сообщения делят одну загрузку.
func (m *MessageManager) ingest(ctx context.Context, raw *rawMessage) (*Message, error) {
	id := int64(raw.Message.ID)
	if msg := m.Get(id); msg != nil {
		return msg, nil
	}
	v, err := share(ctx, &m.group, idKey(id), func(ctx context.Context) (any, error) {
		if msg := m.Get(id); msg != nil {
			return msg, nil
		}
		msg := newMessage(m.c, raw)
		if err := resolveGraph(ctx, msg); err != nil {
			return nil, err
		}
		stored, _ := m.store.Add(id, msg)
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Message), nil
}
