package blacket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"example.com/blacket/internal/event"
	"example.com/blacket/pkg/rest"
	"example.com/blacket/pkg/socket"
)

// Client собирает менеджеры сущностей, REST и сокет событий.
type Client struct {
	opts Options
	log  *zap.Logger
	rest *rest.Client

	Messages *MessageManager
	Rooms    *RoomManager
	Users    *UserManager
	Clans    *ClanManager
	Data     *DataManager

	socket *socket.Socket

	// ctx: время жизни клиента; гасится в Close.
	ctx    context.Context
	cancel context.CancelFunc

	onOpen          *event.Registry[*Client]
	onClose         *event.Registry[struct{}]
	onMessageCreate *event.Registry[*Message]
	onMessageDelete *event.Registry[MessageDeleteEvent]
	onMessageEdit   *event.Registry[MessageEditEvent]
	onMessageAck    *event.Registry[MessageAckEvent]
	onNotification  *event.Registry[*Notification]
	onHeartbeat     *event.Registry[struct{}]
	onError         *event.Registry[error]
}

// New собирает клиент. Сеть не трогает: соединение и инициализация
// менеджеров: в Connect.
func New(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrNoToken
	}
	opts = opts.withDefaults()

	c := &Client{
		opts: opts,
		log:  opts.Logger,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.rest = rest.New(rest.Config{
		BaseURL:    opts.BaseURL,
		Token:      opts.Token,
		HTTPClient: opts.HTTPClient,
		Logger:     c.log.Named("rest"),
	})

	c.onOpen = event.NewRegistry[*Client](socket.EventOpen, c.log)
	c.onClose = event.NewRegistry[struct{}](socket.EventClose, c.log)
	c.onMessageCreate = event.NewRegistry[*Message](socket.EventMessageCreate, c.log)
	c.onMessageDelete = event.NewRegistry[MessageDeleteEvent](socket.EventMessageDelete, c.log)
	c.onMessageEdit = event.NewRegistry[MessageEditEvent](socket.EventMessageEdit, c.log)
	c.onMessageAck = event.NewRegistry[MessageAckEvent](socket.EventMessageAck, c.log)
	c.onNotification = event.NewRegistry[*Notification](socket.EventNotification, c.log)
	c.onHeartbeat = event.NewRegistry[struct{}](socket.EventHeartbeat, c.log)
	c.onError = event.NewRegistry[error]("error", c.log)

	// менеджеры без сетевых зависимостей первыми, сокет последним
	c.Messages = newMessageManager(c)
	c.Rooms = newRoomManager(c)
	c.Users = newUserManager(c)
	c.Clans = newClanManager(c)
	c.Data = newDataManager(c)

	header := http.Header{}
	header.Set("Cookie", "token="+opts.Token+";")
	header.Set("User-Agent", fmt.Sprintf("blacket.go (%s)", rest.Version))

	s := socket.New(socket.Config{
		URL:              opts.SocketURL,
		Header:           header,
		Reconnect:        opts.Reconnect,
		ReconnectDelay:   opts.ReconnectTime,
		MaxAttempts:      opts.ReconnectAttempts,
		HeartbeatTimeout: opts.HeartbeatTimeout,
		Dialer:           opts.Dialer,
		Clock:            opts.Clock,
		Logger:           c.log.Named("socket"),
	})
	s.OnOpen = c.initManagers
	s.OnRaw = c.onRawFrame
	s.OnFrame = func(f socket.Frame) { c.handleFrame(c.ctx, f) }
	s.OnDisconnected = c.disconnected
	s.OnError = func(err error) { c.onError.Emit(err) }
	c.socket = s

	return c, nil
}

// Connect подключает сокет. Возвращается после того, как свой профиль и
// каталог загружены; событие open придёт слушателям следом.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.socket.Connect(ctx); err != nil {
		return fmt.Errorf("blacket: connect: %w", err)
	}
	return nil
}

// Close закрывает сокет навсегда. Ожидающие Send получают ошибку.
func (c *Client) Close() error {
	c.cancel()
	err := c.socket.Close()
	c.Data.stop()
	return err
}

// Wait ждёт, пока сокет остановится и последнее событие будет доставлено.
func (c *Client) Wait(ctx context.Context) error { return c.socket.Wait(ctx) }

func (c *Client) Done() <-chan struct{} { return c.socket.Done() }

func (c *Client) State() socket.State { return c.socket.State() }

func (c *Client) IsConnected() bool { return c.socket.IsConnected() }

// Me: свой профиль из кэша (после Connect).
func (c *Client) Me() *PrivateUser {
	me, _ := c.Users.Me(c.ctx, false)
	return me
}

// Emit: сырой кадр {event, data} в сокет.
func (c *Client) Emit(event string, data any) error { return c.socket.Emit(event, data) }

// URL: абсолютный адрес ресурса на сервере.
func (c *Client) URL(path string) string { return c.rest.URL(path) }

func (c *Client) Logger() *zap.Logger { return c.log }

func (c *Client) OnOpen(fn func(*Client)) *event.Handle { return c.onOpen.On(fn) }

func (c *Client) OnClose(fn func()) *event.Handle {
	return c.onClose.On(func(struct{}) { fn() })
}

func (c *Client) OnMessageCreate(fn func(*Message)) *event.Handle {
	return c.onMessageCreate.On(fn)
}

func (c *Client) OnMessageDelete(fn func(MessageDeleteEvent)) *event.Handle {
	return c.onMessageDelete.On(fn)
}

func (c *Client) OnMessageEdit(fn func(MessageEditEvent)) *event.Handle {
	return c.onMessageEdit.On(fn)
}

func (c *Client) OnMessageAck(fn func(MessageAckEvent)) *event.Handle {
	return c.onMessageAck.On(fn)
}

func (c *Client) OnNotification(fn func(*Notification)) *event.Handle {
	return c.onNotification.On(fn)
}

func (c *Client) OnHeartbeat(fn func()) *event.Handle {
	return c.onHeartbeat.On(func(struct{}) { fn() })
}

// OnError: ошибки транспорта (разрывы, неудачные реконнекты, сбои
// обработки кадров).
func (c *Client) OnError(fn func(error)) *event.Handle { return c.onError.On(fn) }

// initManagers висит на OnOpen сокета: одноразовая инициализация до события open.
func (c *Client) initManagers(ctx context.Context) error {
	if !c.Users.Ready() {
		if _, err := c.Users.Init(ctx); err != nil && !errors.Is(err, ErrAlreadyInitialized) {
			return err
		}
	}
	return c.Data.Init(ctx)
}

// onRawFrame вызывается из горутины чтения, до очереди. Ожидание ack
// забирается здесь же, до разрыва соединения, а сообщение резолвится
// отдельно от диспетчера: слушатель, ждущий Send, не должен блокировать
// свой же ack.
func (c *Client) onRawFrame(f socket.Frame) {
	if f.Event != socket.EventMessageAck || f.CustomKey == "" {
		return
	}
	var raw rawMessage
	if err := json.Unmarshal(f.Data, &raw); err != nil {
		c.log.Debug("bad ack payload", zap.String("key", f.CustomKey), zap.Error(err))
		return
	}
	roomID := int64(raw.Room.ID)
	if roomID == 0 {
		roomID = int64(raw.Message.Room)
	}
	deliver, ok := c.Rooms.claim(roomID, f.CustomKey)
	if !ok {
		return
	}
	go c.completeAck(&raw, deliver)
}

func (c *Client) completeAck(raw *rawMessage, deliver func(*Message, error)) {
	msg, err := c.Messages.ingest(c.ctx, raw)
	deliver(msg, err)
}

func (c *Client) disconnected(err error) {
	cause := socket.ErrDisconnected
	if err != nil {
		cause = fmt.Errorf("%w: %w", socket.ErrDisconnected, err)
	}
	if n := c.Rooms.failAll(cause); n > 0 {
		c.log.Info("pending sends failed", zap.Int("count", n), zap.Error(err))
	}
}
