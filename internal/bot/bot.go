package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/blacket/internal/event"
	"example.com/blacket/pkg/blacket"
)

const (
	commandTimeout = 15 * time.Second
	// чтобы серия быстрых реконнектов не запускала пересинхронизацию каждый раз
	resyncDebounce = 2 * time.Second
)

type Config struct {
	Prefix        string
	Room          int64
	WatchInterval time.Duration
	WatchFile     string
	// Watch: кланы из конфига, добавляются к сохранённым.
	Watch []int64
}

// Bot отвечает на команды в чате и следит за кланами.
type Bot struct {
	c   *blacket.Client
	log *zap.Logger
	cfg Config

	store *watchStore
	watch *clanWatch

	handles []*event.Handle

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	resyncMu   sync.Mutex
	lastResync time.Time
}

// New загружает сохранённый список кланов. Клиент может быть ещё не
// подключён.
func New(c *blacket.Client, cfg Config, log *zap.Logger) (*Bot, error) {
	if c == nil {
		return nil, errors.New("bot: client is nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = time.Minute
	}

	b := &Bot{c: c, log: log, cfg: cfg, store: newWatchStore(cfg.WatchFile)}
	if err := b.store.Load(); err != nil {
		return nil, fmt.Errorf("bot: load watch list: %w", err)
	}
	for _, id := range cfg.Watch {
		if _, err := b.store.Add(id); err != nil {
			return nil, fmt.Errorf("bot: save watch list: %w", err)
		}
	}
	b.watch = newClanWatch(
		func(ctx context.Context, id int64) (*blacket.Clan, error) { return c.Clans.Fetch(ctx, id, true) },
		b.store.Clans,
		log.Named("watch"),
	)
	return b, nil
}

func (b *Bot) Start() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot: already running")
	}
	b.running = true
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.handles = append(b.handles,
		b.c.OnMessageCreate(b.onMessage),
		// любое успешное подключение (первое или реконнект): пересинхронизация
		b.c.OnOpen(func(*blacket.Client) { b.goSafe(b.resync) }),
	)
	b.mu.Unlock()

	b.watch.Start(b.cfg.WatchInterval, b.announce)
	if b.c.IsConnected() {
		b.goSafe(b.resync)
	}
	b.log.Info("bot started",
		zap.String("prefix", b.cfg.Prefix),
		zap.Int64("room", b.cfg.Room),
		zap.Int("watched", len(b.store.Clans())))
	return nil
}

// Stop снимает слушателей и ждёт уже запущенные команды. Повторный вызов
// ничего не делает.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	for _, h := range b.handles {
		h.Off()
	}
	b.handles = nil
	b.cancel()
	b.mu.Unlock()

	b.watch.Stop()
	b.wg.Wait()
}

// goSafe запускает fn в горутине, которую дождётся Stop.
func (b *Bot) goSafe(fn func(ctx context.Context)) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	ctx := b.ctx
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

// onMessage слушает диспетчер; команды выполняются отдельно, чтобы
// REST-запросы не держали следующие кадры.
func (b *Bot) onMessage(m *blacket.Message) {
	if me := b.c.Me(); me != nil && m.AuthorID() == me.ID {
		return
	}
	text := strings.TrimSpace(m.Content())
	if !strings.HasPrefix(text, b.cfg.Prefix) {
		return
	}
	b.log.Debug("command", zap.Int64("author", m.AuthorID()), zap.String("text", text))

	b.goSafe(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		reply, err := b.HandleCommand(ctx, text)
		if err != nil {
			reply = fmt.Sprintf("err: %v", err)
		}
		if reply == "" {
			return
		}
		if _, err := m.Reply(ctx, reply, false); err != nil {
			b.log.Warn("reply failed", zap.Int64("message", m.ID), zap.Error(err))
		}
	})
}

// announce пишет в комнату объявлений. Синхронно: объявления одного
// прохода уходят по порядку.
func (b *Bot) announce(text string) {
	b.mu.Lock()
	running, ctx := b.running, b.ctx
	b.mu.Unlock()
	if !running {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	room := b.c.Rooms.GetOrCreate(b.cfg.Room, "")
	if _, err := room.Send(ctx, text); err != nil {
		b.log.Warn("announce failed", zap.Int64("room", b.cfg.Room), zap.Error(err))
	}
}

// resync: внеочередной проход clan watch после (ре)подключения.
func (b *Bot) resync(ctx context.Context) {
	b.resyncMu.Lock()
	if time.Since(b.lastResync) < resyncDebounce {
		b.resyncMu.Unlock()
		return
	}
	b.lastResync = time.Now()
	b.resyncMu.Unlock()

	b.watch.Scan(ctx, b.announce)
}
