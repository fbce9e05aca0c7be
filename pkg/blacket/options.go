package blacket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"example.com/blacket/internal/sched"
	"example.com/blacket/pkg/rest"
	"example.com/blacket/pkg/socket"
)

// Options: настройки клиента. Обязателен только Token.
type Options struct {
	Token string

	// Reconnect: переподключаться после разрыва (по умолчанию нет).
	Reconnect bool
	// ReconnectTime: пауза перед каждой попыткой, по умолчанию 2s.
	ReconnectTime time.Duration
	// ReconnectAttempts ограничивает число реконнектов за жизнь клиента, 0 снимает лимит.
	ReconnectAttempts int

	// AckTimeout ограничивает ожидание подтверждения отправки; 0: ждать,
	// пока не отменят ctx или не порвётся соединение.
	AckTimeout time.Duration
	// HeartbeatTimeout: дедлайн между heartbeat сервера, по умолчанию 30s.
	HeartbeatTimeout time.Duration

	BaseURL   string
	SocketURL string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
	Clock      sched.Clock
}

func (o Options) withDefaults() Options {
	if o.ReconnectTime <= 0 {
		o.ReconnectTime = 2 * time.Second
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = 30 * time.Second
	}
	if o.BaseURL == "" {
		o.BaseURL = rest.DefaultBaseURL
	}
	if o.SocketURL == "" {
		o.SocketURL = socket.DefaultURL
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = sched.Real
	}
	return o
}
