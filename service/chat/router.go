package chat

import (
	"context"
	"encoding/json"
	"hash/crc32"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"SocialNet/logger"
	"SocialNet/module/notification"
	notifmodel "SocialNet/module/notification/model"
	"SocialNet/service/metrics"
	"SocialNet/tools/errs"
	"SocialNet/tools/safe"
)

type Notifier interface {
	Trigger(ctx context.Context, in notification.TriggerInput) (notification.Outcome, *notifmodel.View, error)
}

// PresenceHooks 上下线旁路（如 redis 镜像），不能阻塞
type PresenceHooks interface {
	Online(userID string)
	Offline(userID string)
}

type inboundKind int

const (
	kindConnect inboundKind = iota
	kindFrame
	kindClose
)

type inbound struct {
	kind inboundKind
	s    *Session
	env  *Envelope
}

// Router 单协程消费全局入站队列，独占 sessions；通知落库交给按接收者分片的 worker
type Router struct {
	cfg      Config
	presence Presence
	out      *Outbox
	notifier Notifier
	hooks    PresenceHooks
	disp     *Dispatcher

	inbound  chan inbound
	sessions map[*Session]struct{}
	shards   []chan notification.TriggerInput

	wg   sync.WaitGroup
	done chan struct{}
}

func NewRouter(cfg Config, presence Presence, notifier Notifier) *Router {
	cfg.norm()
	safe.MustNotNil(presence, "presence")
	r := &Router{
		cfg:      cfg,
		presence: presence,
		out:      NewOutbox(presence),
		notifier: notifier,
		disp:     NewDispatcher(),
		inbound:  make(chan inbound, cfg.InboundQueue),
		sessions: make(map[*Session]struct{}),
		shards:   make([]chan notification.TriggerInput, cfg.NotifyWorkers),
		done:     make(chan struct{}),
	}
	for i := range r.shards {
		r.shards[i] = make(chan notification.TriggerInput, cfg.NotifyQueue)
	}
	r.disp.Register(EventIdentify, r.handleIdentify)
	r.disp.Register(EventSendMessage, r.handleSendMessage)
	r.disp.Register(EventTypingStart, r.handleTyping(EventTypingStart))
	r.disp.Register(EventTypingStop, r.handleTyping(EventTypingStop))
	r.disp.Register(EventTriggerNotification, r.handleTrigger)
	return r
}

// SetHooks 须在 Run 之前调用
func (r *Router) SetHooks(h PresenceHooks) { r.hooks = h }

func (r *Router) Presence() Presence { return r.presence }

func (r *Router) Outbox() *Outbox { return r.out }

func (r *Router) Done() <-chan struct{} { return r.done }

func (r *Router) Run(ctx context.Context) {
	defer close(r.done)
	for i, ch := range r.shards {
		r.wg.Add(1)
		ch := ch
		safe.Go("notify-worker-"+strconv.Itoa(i), func() {
			defer r.wg.Done()
			r.notifyLoop(ch)
		})
	}
	logger.Infof("[router] started inbound=%d workers=%d", r.cfg.InboundQueue, len(r.shards))

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case ev := <-r.inbound:
			r.handle(ev)
		}
	}
}

func (r *Router) shutdown() {
	for s := range r.sessions {
		if _, user := s.markClosed(); user != "" {
			r.presence.Remove(user, s)
		}
		s.Close()
		delete(r.sessions, s)
		metrics.ActiveSessions.Dec()
	}
	for _, ch := range r.shards {
		close(ch)
	}
	r.wg.Wait()
	logger.Info("[router] stopped")
}

func (r *Router) enqueue(ev inbound) bool {
	select {
	case r.inbound <- ev:
		return true
	case <-r.done:
		return false
	}
}

// Connect 登记新会话；路由已停止时返回 false
func (r *Router) Connect(s *Session) bool { return r.enqueue(inbound{kind: kindConnect, s: s}) }

func (r *Router) Frame(s *Session, env *Envelope) bool {
	return r.enqueue(inbound{kind: kindFrame, s: s, env: env})
}

func (r *Router) Disconnect(s *Session) { r.enqueue(inbound{kind: kindClose, s: s}) }

func (r *Router) handle(ev inbound) {
	defer safe.Recover("router")
	switch ev.kind {
	case kindConnect:
		if ev.s.State() == StateClosed {
			return
		}
		r.sessions[ev.s] = struct{}{}
		metrics.ActiveSessions.Inc()
	case kindClose:
		r.handleClose(ev.s)
	case kindFrame:
		if _, ok := r.sessions[ev.s]; !ok {
			return
		}
		if err := r.disp.Dispatch(ev.s, ev.env); err != nil {
			metrics.InboundEvents.WithLabelValues("malformed").Inc()
			logger.Debug("drop inbound event",
				zap.String("conn", ev.s.ID()), zap.String("event", ev.env.Event), zap.Error(err))
			return
		}
		metrics.InboundEvents.WithLabelValues(ev.env.Event).Inc()
	}
}

func (r *Router) handleClose(s *Session) {
	if _, ok := r.sessions[s]; ok {
		delete(r.sessions, s)
		metrics.ActiveSessions.Dec()
	}
	_, user := s.markClosed()
	if user == "" {
		return
	}
	if r.presence.Remove(user, s) && r.hooks != nil {
		r.hooks.Offline(user)
	}
	r.broadcastSnapshot()
}

func (r *Router) broadcastSnapshot() {
	users := r.presence.Snapshot()
	metrics.OnlineUsers.Set(float64(len(users)))
	frame, err := EncodeFrame(EventPresenceSnapshot, users)
	if err != nil {
		logger.Errorf("[router] encode snapshot: %v", err)
		return
	}
	for s := range r.sessions {
		s.Send(frame)
	}
}

func (r *Router) handleIdentify(s *Session, data json.RawMessage) error {
	user, err := parseIdentify(data)
	if err != nil {
		return err
	}
	if s.authUser != "" && user != s.authUser {
		return errs.ErrNoPermission.WrapMsg("identify does not match token", "user", user)
	}
	prev, ok := s.identify(user)
	if !ok {
		return nil
	}
	if prev != "" && prev != user {
		if r.presence.Remove(prev, s) && r.hooks != nil {
			r.hooks.Offline(prev)
		}
	}
	if old := r.presence.Identify(user, s); old != nil {
		logger.Info("presence superseded", zap.String("user", user), zap.String("old", old.ID()), zap.String("new", s.ID()))
	}
	if r.hooks != nil {
		r.hooks.Online(user)
	}
	r.broadcastSnapshot()
	return nil
}

func requireIdentified(s *Session) (string, error) {
	user := s.UserID()
	if user == "" {
		return "", errs.ErrNoPermission.WrapMsg("identify first")
	}
	return user, nil
}

// handleSendMessage 原样转发，不落库
func (r *Router) handleSendMessage(s *Session, data json.RawMessage) error {
	if _, err := requireIdentified(s); err != nil {
		return err
	}
	head, err := decodePayload[messageHead](data)
	if err != nil {
		return err
	}
	receiver := strings.TrimSpace(head.ReceiverID)
	if receiver == "" {
		return errs.ErrArgs.WrapMsg("message without receiverId")
	}
	r.out.Deliver(receiver, EventMessageDelivered, data)
	return nil
}

func (r *Router) handleTyping(event string) HandlerFunc {
	return func(s *Session, data json.RawMessage) error {
		if _, err := requireIdentified(s); err != nil {
			return err
		}
		p, err := decodePayload[typingPayload](data)
		if err != nil {
			return err
		}
		if p.ReceiverID == "" {
			return errs.ErrArgs.WrapMsg("typing without receiverId")
		}
		r.out.Deliver(p.ReceiverID, event, map[string]string{"conversationId": p.ConversationID})
		return nil
	}
}

func (r *Router) handleTrigger(s *Session, data json.RawMessage) error {
	user, err := requireIdentified(s)
	if err != nil {
		return err
	}
	p, err := decodePayload[triggerPayload](data)
	if err != nil {
		return err
	}
	sender := strings.TrimSpace(p.SenderID)
	if s.authUser != "" && sender != "" && sender != s.authUser {
		return errs.ErrNoPermission.WrapMsg("senderId does not match token")
	}
	if sender == "" {
		sender = user
	}
	in := notification.TriggerInput{
		SenderID:      sender,
		ReceiverID:    strings.TrimSpace(p.ReceiverID),
		Type:          notifmodel.Type(p.Type),
		RelatedPostID: p.RelatedPostID,
	}
	if in.RelatedPostID == "" {
		in.RelatedPostID = p.PostID
	}
	if in.ReceiverID == "" || !in.Type.Valid() {
		return errs.ErrArgs.WrapMsg("bad notification payload", "type", p.Type)
	}
	if in.SenderID == in.ReceiverID {
		metrics.NotificationOutcomes.WithLabelValues(string(notification.OutcomeSelf)).Inc()
		return nil
	}
	if r.notifier == nil {
		return nil
	}
	ch := r.shards[crc32.ChecksumIEEE([]byte(in.ReceiverID))%uint32(len(r.shards))]
	select {
	case ch <- in:
	default:
		metrics.NotificationOutcomes.WithLabelValues("dropped").Inc()
		logger.Warn("notify queue full, drop trigger", zap.String("receiver", in.ReceiverID))
	}
	return nil
}

// notifyLoop 同一接收者落在同一分片，保证顺序
func (r *Router) notifyLoop(ch <-chan notification.TriggerInput) {
	for in := range ch {
		r.persist(in)
	}
}

func (r *Router) persist(in notification.TriggerInput) {
	defer safe.Recover("notify-worker")
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PersistTimeout)
	defer cancel()
	outcome, _, err := r.notifier.Trigger(ctx, in)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Warn("notification persist timeout", zap.String("receiver", in.ReceiverID), zap.Duration("timeout", r.cfg.PersistTimeout))
			return
		}
		logger.Warn("notification persist failed", zap.String("receiver", in.ReceiverID), zap.Error(err))
		return
	}
	logger.Debug("notification triggered", zap.String("outcome", string(outcome)), zap.String("receiver", in.ReceiverID))
}
