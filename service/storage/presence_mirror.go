package storage

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"SocialNet/logger"
)

// presence key: im:presence:<user>，value 为节点 ID，TTL 控制在线有效期
func presenceKey(user string) string { return "im:presence:" + user }

// last seen key: im:lastseen:<user>，value 为 unix 秒
func lastSeenKey(user string) string { return "im:lastseen:" + user }

// 仅当 key 仍属于本节点时删除，避免把其他节点上的新连接标成离线
// KEYS[1] = presence key
// ARGV[1] = node id
const luaDelIfOwner = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// PresenceStore 镜像写入目标
type PresenceStore interface {
	Online(ctx context.Context, user, node string, ttl time.Duration) error
	Offline(ctx context.Context, user, node string, at time.Time) error
	Lookup(ctx context.Context, user string) (node string, online bool, err error)
}

// RedisPresence 基于 go-redis 的 PresenceStore
type RedisPresence struct {
	rdb    redis.UniversalClient
	delLua *redis.Script
}

func NewRedisPresence(rdb redis.UniversalClient) *RedisPresence {
	return &RedisPresence{rdb: rdb, delLua: redis.NewScript(luaDelIfOwner)}
}

func (p *RedisPresence) Online(ctx context.Context, user, node string, ttl time.Duration) error {
	return p.rdb.Set(ctx, presenceKey(user), node, ttl).Err()
}

func (p *RedisPresence) Offline(ctx context.Context, user, node string, at time.Time) error {
	if err := p.delLua.Run(ctx, p.rdb, []string{presenceKey(user)}, node).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return p.rdb.Set(ctx, lastSeenKey(user), at.Unix(), 0).Err()
}

func (p *RedisPresence) Lookup(ctx context.Context, user string) (string, bool, error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

type mirrorOp struct {
	user   string
	online bool
	at     time.Time
}

// Mirror 把本节点的 Identify/Remove 异步同步到 PresenceStore。
// 单 worker 顺序消费，同一用户的上下线不会乱序；队列满时丢弃并告警。
// online 在入队时同步更新，丢弃的操作由续期补齐：丢掉的上线在下次续期写入，
// 丢掉的下线不再续期，远端 key 在 TTL 后过期。
type Mirror struct {
	store PresenceStore
	node  string
	ttl   time.Duration
	ops   chan mirrorOp
	done  chan struct{}

	mu     sync.Mutex
	online map[string]struct{}
}

func NewMirror(store PresenceStore, node string, ttl time.Duration, queue int) *Mirror {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	if queue <= 0 {
		queue = 1024
	}
	return &Mirror{
		store:  store,
		node:   node,
		ttl:    ttl,
		ops:    make(chan mirrorOp, queue),
		online: make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

// Online / Offline 非阻塞入队，可在 router goroutine 中直接调用
func (m *Mirror) Online(user string)  { m.enqueue(mirrorOp{user: user, online: true, at: time.Now()}) }
func (m *Mirror) Offline(user string) { m.enqueue(mirrorOp{user: user, at: time.Now()}) }

func (m *Mirror) enqueue(op mirrorOp) {
	m.mu.Lock()
	if op.online {
		m.online[op.user] = struct{}{}
	} else {
		delete(m.online, op.user)
	}
	m.mu.Unlock()

	select {
	case m.ops <- op:
	default:
		logger.Warnf("[presence-mirror] queue full, drop user=%s online=%v", op.user, op.online)
	}
}

// Run 阻塞直到 ctx 结束；每 ttl/3 为在线用户续期
func (m *Mirror) Run(ctx context.Context) {
	defer close(m.done)
	refresh := time.NewTicker(m.ttl / 3)
	defer refresh.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.ops:
			m.apply(ctx, op)
		case <-refresh.C:
			m.refresh(ctx)
		}
	}
}

// refresh 只续期入队时仍在线的用户
func (m *Mirror) refresh(ctx context.Context) {
	m.mu.Lock()
	users := make([]string, 0, len(m.online))
	for user := range m.online {
		users = append(users, user)
	}
	m.mu.Unlock()

	for _, user := range users {
		if err := m.store.Online(ctx, user, m.node, m.ttl); err != nil {
			logger.Warnf("[presence-mirror] refresh user=%s err=%v", user, err)
		}
	}
}

// Done Run 退出后 close
func (m *Mirror) Done() <-chan struct{} { return m.done }

func (m *Mirror) apply(ctx context.Context, op mirrorOp) {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var err error
	if op.online {
		err = m.store.Online(opCtx, op.user, m.node, m.ttl)
	} else {
		err = m.store.Offline(opCtx, op.user, m.node, op.at)
	}
	if err != nil {
		logger.Warnf("[presence-mirror] user=%s online=%v err=%v", op.user, op.online, err)
	}
}
