package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SocialNet/logger"
	"SocialNet/service/metrics"
)

type State int32

const (
	StateConnected State = iota
	StateIdentified
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	default:
		return "closed"
	}
}

// Session 一条 websocket 连接。读协程把事件推给路由，写协程独占 conn 的写端
type Session struct {
	id       string
	conn     *websocket.Conn
	authUser string // 握手时鉴权得到的用户，匿名为空
	cfg      Config

	send chan []byte

	mu     sync.Mutex
	state  State
	userID string

	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, authUser string, cfg Config) *Session {
	return &Session{
		id:       id,
		conn:     conn,
		authUser: authUser,
		cfg:      cfg,
		send:     make(chan []byte, cfg.SendQueue),
		closed:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// identify 由路由协程调用；返回之前绑定的用户
func (s *Session) identify(userID string) (prev string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return "", false
	}
	prev = s.userID
	s.userID = userID
	s.state = StateIdentified
	return prev, true
}

// markClosed 只生效一次；返回关闭前的状态和用户
func (s *Session) markClosed() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = StateClosed
	s.closeOnce.Do(func() { close(s.closed) })
	return prev, s.userID
}

// Send 非阻塞入队；队列满或连接已关闭时丢弃
func (s *Session) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		metrics.OutboundDropped.WithLabelValues("closed").Inc()
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		metrics.OutboundDropped.WithLabelValues("slow_consumer").Inc()
		logger.Warn("session send queue full, drop frame", zap.String("conn", s.id), zap.String("user", s.userID))
		return false
	}
}

// Close 关闭底层连接，读协程会随之退出
func (s *Session) Close() {
	s.markClosed()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// readPump 读到的帧交给 push；返回时连接已不可用
func (s *Session) readPump(push func(*Session, *Envelope) bool) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[WS] peer closed conn=%s", s.id)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", s.id, err)
			} else {
				logger.Debugf("[WS] read err conn=%s err=%v", s.id, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		env, perr := ParseEnvelope(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			metrics.InboundEvents.WithLabelValues("malformed").Inc()
			logger.Debugf("[WS] bad frame conn=%s err=%v sample=%q", s.id, perr, sample)
			continue
		}
		if !push(s, env) {
			return
		}
	}
}

// writePump 唯一的写者：发送队列里的帧和定时 ping
func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debugf("[WS] write err conn=%s err=%v", s.id, err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait))
			return
		}
	}
}
