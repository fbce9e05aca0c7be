package blacket

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Полезные нагрузки событий для слушателей клиента.

type MessageDeleteEvent struct {
	ID      int64
	Message *Message
}

type MessageEditEvent struct {
	ID      int64
	Message *Message
}

type MessageAckEvent struct {
	CustomKey string
	Message   *Message
}

// Notification: уведомление сервера. Fields: весь объект data как есть,
// включая поля, которых нет в структуре.
type Notification struct {
	Title   string
	Message string
	Icon    string
	Time    time.Time

	Fields *structpb.Struct
}

type rawNotification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
	Time    int64  `json:"time"`
}

func parseNotification(data json.RawMessage) (*Notification, error) {
	var raw rawNotification
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	fields := &structpb.Struct{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, fields); err != nil {
		return nil, fmt.Errorf("decode notification fields: %w", err)
	}
	return &Notification{
		Title:   raw.Title,
		Message: raw.Message,
		Icon:    raw.Icon,
		Time:    fromMillis(raw.Time),
		Fields:  fields,
	}, nil
}

// rawMessageRef: кадры messages-edit/messages-delete. Сервер кладёт id
// сообщения то в message, то в id.
type rawMessageRef struct {
	ID      flexID `json:"id"`
	Message flexID `json:"message"`
	Room    flexID `json:"room"`
	Content string `json:"content"`
}

func (r rawMessageRef) messageID() int64 {
	if r.Message != 0 {
		return int64(r.Message)
	}
	return int64(r.ID)
}
