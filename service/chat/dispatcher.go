package chat

import (
	"encoding/json"

	"SocialNet/tools/errs"
)

type HandlerFunc func(s *Session, data json.RawMessage) error

// Dispatcher 事件名 -> 处理函数；别名在 ParseEnvelope 里已归一
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(event string, h HandlerFunc) { d.handlers[event] = h }

func (d *Dispatcher) Dispatch(s *Session, env *Envelope) error {
	h, ok := d.handlers[env.Event]
	if !ok {
		return errs.ErrArgs.WrapMsg("no handler for event", "event", env.Event)
	}
	return h(s, env.Data)
}
