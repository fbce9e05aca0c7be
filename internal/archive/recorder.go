package archive

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"example.com/blacket/internal/event"
	"example.com/blacket/pkg/blacket"
)

const (
	recorderQueue = 256
	writeTimeout  = 5 * time.Second
)

// Recorder пишет в архив события чата. Слушатели только снимают состояние
// сообщения и ставят запись в очередь; пишет одна горутина Run, в порядке
// событий.
type Recorder struct {
	store Store
	log   *zap.Logger

	ops     chan op
	handles []*event.Handle
}

type op struct {
	kind string
	id   int64
	fn   func(ctx context.Context) error
}

func NewRecorder(store Store, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store: store,
		log:   log,
		ops:   make(chan op, recorderQueue),
	}
}

// Attach подписывает рекордер на события клиента.
func (r *Recorder) Attach(c *blacket.Client) {
	r.handles = append(r.handles,
		c.OnMessageCreate(r.onCreate),
		c.OnMessageAck(func(ev blacket.MessageAckEvent) { r.onCreate(ev.Message) }),
		c.OnMessageEdit(r.onEdit),
		c.OnMessageDelete(r.onDelete),
	)
}

// Detach снимает подписки. Уже поставленные записи Run допишет.
func (r *Recorder) Detach() {
	for _, h := range r.handles {
		h.Off()
	}
	r.handles = nil
}

// Run пишет очередь, пока не отменят ctx; остаток очереди дописывается.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case o := <-r.ops:
			r.apply(o)
		case <-ctx.Done():
			for {
				select {
				case o := <-r.ops:
					r.apply(o)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := o.fn(ctx); err != nil {
		r.log.Warn("archive write failed", zap.String("op", o.kind), zap.Int64("id", o.id), zap.Error(err))
	}
}

func (r *Recorder) enqueue(o op) {
	select {
	case r.ops <- o:
	default:
		r.log.Warn("archive queue full, dropped", zap.String("op", o.kind), zap.Int64("id", o.id))
	}
}

// snapshot: состояние сообщения на момент события.
func snapshot(m *blacket.Message) *Record {
	rec := &Record{
		ID:      m.ID,
		Author:  m.AuthorID(),
		Content: m.Content(),
		Date:    m.Date,
		Edited:  m.Edited(),
		Deleted: m.Deleted(),
	}
	if edits := m.Edits(); len(edits) > 0 {
		rec.Original = edits[0]
	}
	if room := m.Room(); room != nil {
		rec.Room = room.ID
		rec.RoomName = room.Name
	}
	return rec
}

func (r *Recorder) onCreate(m *blacket.Message) {
	if m == nil {
		return
	}
	rec := snapshot(m)
	r.enqueue(op{kind: "save", id: rec.ID, fn: func(ctx context.Context) error {
		return r.store.SaveMessage(ctx, rec)
	}})
}

// onEdit: сообщение могло прийти до запуска рекордера, тогда сначала
// сохраняем его снимок.
func (r *Recorder) onEdit(ev blacket.MessageEditEvent) {
	rec := snapshot(ev.Message)
	at := time.Now()
	r.enqueue(op{kind: "edit", id: rec.ID, fn: func(ctx context.Context) error {
		err := r.store.AppendEdit(ctx, rec.ID, rec.Content, at)
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := r.store.SaveMessage(ctx, rec); err != nil {
			return err
		}
		return r.store.AppendEdit(ctx, rec.ID, rec.Content, at)
	}})
}

func (r *Recorder) onDelete(ev blacket.MessageDeleteEvent) {
	rec := snapshot(ev.Message)
	r.enqueue(op{kind: "delete", id: rec.ID, fn: func(ctx context.Context) error {
		err := r.store.MarkDeleted(ctx, rec.ID)
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		return r.store.SaveMessage(ctx, rec)
	}})
}
