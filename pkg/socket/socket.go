package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"example.com/blacket/internal/sched"
)

const DefaultURL = "wss://blacket.org/worker/socket"

// Теги событий на проводе.
const (
	EventOpen          = "open"
	EventClose         = "close"
	EventMessageCreate = "messages-create"
	EventMessageDelete = "messages-delete"
	EventMessageEdit   = "messages-edit"
	EventMessageAck    = "messages-ack"
	EventNotification  = "notification"
	EventHeartbeat     = "heartbeat"
)

var (
	ErrNotConnected     = errors.New("socket: not connected")
	ErrClosed           = errors.New("socket: closed")
	ErrAlreadyStarted   = errors.New("socket: already started")
	ErrDisconnected     = errors.New("socket: connection lost")
	ErrHeartbeatTimeout = errors.New("socket: heartbeat timeout")
)

type State int32

const (
	Idle State = iota
	Connecting
	Open
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Frame: входящий кадр.
type Frame struct {
	Error     bool            `json:"error"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	CustomKey string          `json:"customKey,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type Config struct {
	URL    string
	Header http.Header

	Reconnect      bool
	ReconnectDelay time.Duration // по умолчанию 2s
	MaxAttempts    int           // попыток реконнекта за жизнь сокета; 0: без лимита

	HeartbeatTimeout time.Duration // по умолчанию 30s
	WriteTimeout     time.Duration // по умолчанию 5s
	QueueSize        int           // по умолчанию 256

	Dialer *websocket.Dialer
	Clock  sched.Clock
	Logger *zap.Logger
}

type Socket struct {
	cfg   Config
	log   *zap.Logger
	clock sched.Clock

	state  atomic.Int32
	closed atomic.Bool

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	started bool

	wmu       sync.Mutex // сериализует запись в websocket
	heartbeat *sched.Task
	hbExpired atomic.Bool

	frames   chan Frame
	done     chan struct{}
	attempts int // только из горутины run

	OnConnecting   func()
	OnOpen         func(ctx context.Context) error
	OnRaw          func(Frame)
	OnFrame        func(Frame)
	OnDisconnected func(error)
	OnError        func(error)
}

func New(cfg Config) *Socket {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Clock == nil {
		cfg.Clock = sched.Real
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Socket{
		cfg:       cfg,
		log:       cfg.Logger,
		clock:     cfg.Clock,
		heartbeat: sched.NewTask(cfg.Clock),
		frames:    make(chan Frame, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Connect: первый dial и OnOpen выполняются синхронно; при ошибке сокет
// возвращается в Idle и Connect можно повторить. Дальше соединение живёт
// в фоне до Close или отмены ctx.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	conn, err := s.open(runCtx)
	if err != nil {
		cancel()
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			s.setState(Closed)
			close(s.done)
			return err
		}
		s.started = false
		s.cancel = nil
		s.mu.Unlock()
		s.setState(Idle)
		return err
	}

	go s.dispatch()
	go s.run(runCtx, conn)
	return nil
}

// Close: терминальное закрытие. Done закрывается, когда диспетчер
// доставит последний кадр ("close").
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.started = true
	s.mu.Unlock()

	if !started {
		s.setState(Closed)
		close(s.done)
		return nil
	}
	if cancel != nil {
		cancel()
	}
	s.closeConn()
	return nil
}

func (s *Socket) Done() <-chan struct{} { return s.done }

// Wait ждёт полной остановки (после Close или терминального разрыва).
func (s *Socket) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Socket) State() State { return State(s.state.Load()) }

func (s *Socket) IsConnected() bool { return s.State() == Open }

// Emit отправляет {event, data}. data == nil: кадр без поля data.
func (s *Socket) Emit(event string, data any) error {
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("socket: encode %s: %w", event, err)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || s.State() != Open {
		return ErrNotConnected
	}
	return s.write(conn, b)
}

func (s *Socket) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		s.log.Debug("socket state", zap.Stringer("from", old), zap.Stringer("to", st))
	}
}

func (s *Socket) emitError(err error) {
	s.log.Warn("socket error", zap.Error(err))
	if s.OnError != nil {
		s.OnError(err)
	}
}
