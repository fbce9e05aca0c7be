package blacket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"example.com/blacket/pkg/socket"
)

const boosterNotificationTitle = "Booster"

// handleFrame: разбор одного кадра. Вызывается диспетчером сокета по одному,
// в порядке прихода: следующий кадр ждёт, пока этот полностью обработан.
func (c *Client) handleFrame(ctx context.Context, f socket.Frame) {
	switch f.Event {
	case socket.EventOpen:
		c.onOpen.Emit(c)

	case socket.EventClose:
		c.onClose.Emit(struct{}{})

	case socket.EventMessageCreate:
		msg, ok := c.ingestFrame(ctx, f)
		if !ok {
			return
		}
		c.onMessageCreate.Emit(msg)

	case socket.EventMessageAck:
		msg, ok := c.ingestFrame(ctx, f)
		if !ok {
			return
		}
		c.onMessageAck.Emit(MessageAckEvent{CustomKey: f.CustomKey, Message: msg})

	case socket.EventMessageEdit:
		var ref rawMessageRef
		if err := json.Unmarshal(f.Data, &ref); err != nil {
			c.log.Debug("bad edit payload", zap.Error(err))
			return
		}
		msg := c.Messages.Get(ref.messageID())
		if msg == nil {
			return
		}
		msg.applyEdit(ref.Content)
		c.onMessageEdit.Emit(MessageEditEvent{ID: msg.ID, Message: msg})

	case socket.EventMessageDelete:
		var ref rawMessageRef
		if err := json.Unmarshal(f.Data, &ref); err != nil {
			c.log.Debug("bad delete payload", zap.Error(err))
			return
		}
		msg := c.Messages.Get(ref.messageID())
		if msg == nil {
			return
		}
		msg.markDeleted()
		c.onMessageDelete.Emit(MessageDeleteEvent{ID: msg.ID, Message: msg})

	case socket.EventNotification:
		n, err := parseNotification(f.Data)
		if err != nil {
			c.log.Debug("bad notification payload", zap.Error(err))
			return
		}
		if n.Title == boosterNotificationTitle {
			if _, err := c.Data.Booster(ctx, true); err != nil {
				c.log.Warn("booster refresh failed", zap.Error(err))
				c.onError.Emit(err)
			}
		}
		c.onNotification.Emit(n)

	case socket.EventHeartbeat:
		c.onHeartbeat.Emit(struct{}{})

	default:
		c.log.Debug("unhandled event", zap.String("event", f.Event))
	}
}

// ingestFrame: сообщение из messages-create/messages-ack, уже полностью
// загруженное. Ошибка загрузки автора: кадр пропускается.
func (c *Client) ingestFrame(ctx context.Context, f socket.Frame) (*Message, bool) {
	var raw rawMessage
	if err := json.Unmarshal(f.Data, &raw); err != nil {
		c.log.Debug("bad message payload", zap.String("event", f.Event), zap.Error(err))
		return nil, false
	}
	msg, err := c.Messages.ingest(ctx, &raw)
	if err != nil {
		c.log.Warn("message resolve failed",
			zap.String("event", f.Event),
			zap.Int64("id", int64(raw.Message.ID)),
			zap.Error(err))
		c.onError.Emit(err)
		return nil, false
	}
	return msg, true
}
