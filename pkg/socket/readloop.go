package socket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// run: жизнь соединения: чтение, разрыв, реконнект. Единственный писатель
// в очередь кадров, поэтому и закрывает её.
func (s *Socket) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.frames)
	defer func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		cancel()
	}()

	// закрыть по отмене контекста
	go func() {
		<-ctx.Done()
		s.closeConn()
	}()

	for {
		s.enqueue(Frame{Event: EventOpen})

		err := s.readLoop(conn)
		s.heartbeat.Stop()
		s.dropConn(conn)
		if s.hbExpired.Load() {
			err = ErrHeartbeatTimeout
		}
		if s.closed.Load() || ctx.Err() != nil {
			err = ErrClosed
		} else if err != nil {
			s.emitError(err)
		}

		s.enqueue(Frame{Event: EventClose})
		if s.OnDisconnected != nil {
			s.OnDisconnected(err)
		}

		conn = s.reconnect(ctx)
		if conn == nil {
			s.closed.Store(true)
			s.setState(Closed)
			s.log.Info("socket closed")
			return
		}
	}
}

func (s *Socket) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Debug("drop malformed frame", zap.Error(err), zap.Int("size", len(data)))
			continue
		}
		if f.Error {
			s.log.Debug("drop error frame",
				zap.String("event", f.Event),
				zap.String("reason", f.Reason),
				zap.ByteString("data", f.Data))
			continue
		}
		if f.Event == EventHeartbeat {
			s.answerHeartbeat(conn)
		}
		if s.OnRaw != nil {
			s.OnRaw(f)
		}
		s.enqueue(f)
	}
}

// reconnect с фиксированной паузой. attempts считает все попытки за жизнь
// сокета, успешное открытие его не сбрасывает.
func (s *Socket) reconnect(ctx context.Context) *websocket.Conn {
	for {
		if !s.cfg.Reconnect || s.closed.Load() || ctx.Err() != nil {
			return nil
		}
		if s.cfg.MaxAttempts > 0 && s.attempts >= s.cfg.MaxAttempts {
			s.log.Warn("reconnect attempts exhausted", zap.Int("attempts", s.attempts))
			return nil
		}
		s.attempts++
		s.setState(Reconnecting)

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.cfg.ReconnectDelay):
		}

		conn, err := s.open(ctx)
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return nil
			}
			s.emitError(fmt.Errorf("reconnect failed (attempt %d): %w", s.attempts, err))
			continue
		}
		return conn
	}
}

func (s *Socket) enqueue(f Frame) {
	s.frames <- f
}

// dispatch: одна горутина, кадры строго по порядку.
func (s *Socket) dispatch() {
	defer close(s.done)
	for f := range s.frames {
		s.deliver(f)
	}
}

func (s *Socket) deliver(f Frame) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("frame handler panicked",
				zap.String("event", f.Event),
				zap.String("panic", fmt.Sprint(p)),
				zap.Stack("stack"))
		}
	}()
	if s.OnFrame != nil {
		s.OnFrame(f)
	}
}
