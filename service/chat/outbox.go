package chat

import (
	"go.uber.org/zap"

	"SocialNet/logger"
	"SocialNet/service/metrics"
)

// Outbox 按用户投递：查在线表，编码后非阻塞入队。接收者离线不是错误
type Outbox struct {
	presence Presence
}

func NewOutbox(p Presence) *Outbox {
	return &Outbox{presence: p}
}

func (o *Outbox) Deliver(userID, event string, data any) bool {
	s, ok := o.presence.Lookup(userID)
	if !ok {
		metrics.OutboundDropped.WithLabelValues("offline").Inc()
		return false
	}
	frame, err := EncodeFrame(event, data)
	if err != nil {
		logger.Warn("encode outbound frame", zap.String("event", event), zap.Error(err))
		return false
	}
	return s.Send(frame)
}
