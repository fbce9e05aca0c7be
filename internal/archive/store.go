// Package archive хранит архив сообщений чата (SQLite или MySQL) с историей
// правок. Пополняется Recorder-ом из событий клиента.
package archive

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("archive: message not found")

// Record: сообщение, как оно лежит в архиве. Content: текущий текст,
// Original: исходный.
type Record struct {
	ID       int64
	Room     int64
	RoomName string
	Author   int64
	Original string
	Content  string
	Date     time.Time
	Edited   bool
	Deleted  bool
}

// Store: хранилище архива.
type Store interface {
	// SaveMessage пишет сообщение, если его ещё нет; повторная запись не
	// трогает существующее.
	SaveMessage(ctx context.Context, r *Record) error
	// AppendEdit добавляет правку и меняет текущий текст.
	AppendEdit(ctx context.Context, id int64, content string, at time.Time) error
	MarkDeleted(ctx context.Context, id int64) error

	Message(ctx context.Context, id int64) (*Record, error)
	// History: исходный текст и все правки по порядку.
	History(ctx context.Context, id int64) ([]string, error)
	// RecentMessages: последние limit сообщений комнаты, от старых к новым.
	RecentMessages(ctx context.Context, room int64, limit int) ([]*Record, error)

	Close() error
}
