package socket

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ========================= low-level =========================

var heartbeatFrame = []byte(`{"event":"heartbeat"}`)

// open: dial → OnOpen → Open. При любой ошибке соединение закрыто.
func (s *Socket) open(ctx context.Context) (*websocket.Conn, error) {
	s.setState(Connecting)
	if s.OnConnecting != nil {
		s.OnConnecting()
	}

	conn, resp, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("socket: dial: %w", err)
	}
	conn.SetReadLimit(64 << 20)
	s.hbExpired.Store(false)

	if !s.setConn(ctx, conn) {
		return nil, ErrClosed
	}

	if s.OnOpen != nil {
		if err := s.OnOpen(ctx); err != nil {
			s.dropConn(conn)
			return nil, fmt.Errorf("socket: open hook: %w", err)
		}
	}
	s.setState(Open)
	s.log.Info("socket connected", zap.String("url", s.cfg.URL))
	return conn, nil
}

// setConn публикует соединение, если сокет ещё жив. Проверка под mu:
// либо Close увидит conn, либо мы увидим отмену.
func (s *Socket) setConn(ctx context.Context, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	s.conn = conn
	return true
}

// безопасно закрыть текущее соединение
func (s *Socket) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	_ = conn.Close()
}

// dropConn закрывает конкретное соединение; текущее обнуляется, только если это оно.
func (s *Socket) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// запись строго через один мьютекс + write-deadline
func (s *Socket) write(conn *websocket.Conn, b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("socket: write: %w", err)
	}
	return nil
}

// answerHeartbeat: эхо в тот же тик и новый дедлайн для этого соединения.
func (s *Socket) answerHeartbeat(conn *websocket.Conn) {
	if err := s.write(conn, heartbeatFrame); err != nil {
		s.log.Debug("heartbeat reply failed", zap.Error(err))
	}
	s.heartbeat.Schedule(s.cfg.HeartbeatTimeout, func() {
		s.log.Warn("heartbeat timeout, closing connection",
			zap.Duration("timeout", s.cfg.HeartbeatTimeout))
		s.hbExpired.Store(true)
		s.dropConn(conn)
	})
}
