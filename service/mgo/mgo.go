package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"SocialNet/data/database/mgo/mongoutil"
	"SocialNet/logger"
	"SocialNet/tools/errs"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	healthEvery = 10 * time.Second
	failThresh  = 3 // 连续 ping 失败阈值
)

// Manager 持有 Mongo 连接：首次连上时 close ready，掉线后自动重连
type Manager struct {
	cfg *mongoutil.Config

	mu        sync.RWMutex
	client    *mongoutil.Client
	ready     chan struct{}
	readyOnce sync.Once
	healthy   atomic.Bool
	lastErr   atomic.Value // error

	// 首次连上后回调（建索引等）
	OnConnect func(ctx context.Context, db *mongo.Database) error
}

func NewManager(cfg *mongoutil.Config) *Manager {
	return &Manager{cfg: cfg, ready: make(chan struct{})}
}

// Start 一直运行到 ctx.Done()
func (m *Manager) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	for {
		if !m.connect(ctx) {
			return
		}
		m.watch(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

// connect 带指数退避重试，ctx 结束返回 false
func (m *Manager) connect(ctx context.Context) bool {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		cli, err := mongoutil.NewMongoDB(ctx, m.cfg)
		if err == nil && m.OnConnect != nil {
			if err = m.OnConnect(ctx, cli.GetDB()); err != nil {
				_ = cli.Close(context.Background())
			}
		}
		if err == nil {
			m.mu.Lock()
			m.client = cli
			m.mu.Unlock()
			m.healthy.Store(true)
			m.readyOnce.Do(func() { close(m.ready) })
			logger.Infof("[mongo] connected database=%s", m.cfg.Database)
			return true
		}

		m.lastErr.Store(err)
		logger.Warnf("[mongo] connect attempt %d failed: %v", attempt+1, err)

		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1)) // 0~20%
		timer := time.NewTimer(backoff - jitter/2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

// watch 周期 ping，连续失败后断开并返回，由外层重连
func (m *Manager) watch(ctx context.Context) {
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	fail := 0
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return
		case <-ticker.C:
			c := m.current()
			if c == nil {
				return
			}
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.GetDB().Client().Ping(pingCtx, nil)
			cancel()
			if err == nil {
				fail = 0
				m.healthy.Store(true)
				continue
			}
			fail++
			m.lastErr.Store(err)
			m.healthy.Store(false)
			if fail >= failThresh {
				logger.Warnf("[mongo] ping failed %d times, reconnecting: %v", fail, err)
				m.drop()
				return
			}
		}
	}
}

func (m *Manager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Close(context.Background())
		m.client = nil
	}
	m.healthy.Store(false)
}

func (m *Manager) current() *mongoutil.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Ready 首次连接成功时 close
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Healthy 最近一次 ping 是否成功
func (m *Manager) Healthy() bool { return m.healthy.Load() }

// Err 最近一次错误
func (m *Manager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// DB 未就绪时返回 false
func (m *Manager) DB() (*mongo.Database, bool) {
	c := m.current()
	if c == nil {
		return nil, false
	}
	return c.GetDB(), true
}

// WaitReady 阻塞直到首次连上或 ctx 结束
func (m *Manager) WaitReady(ctx context.Context) (*mongo.Database, error) {
	select {
	case <-m.ready:
		if db, ok := m.DB(); ok {
			return db, nil
		}
		return nil, errs.ErrInternalServer.WrapMsg("mongo disconnected", "err", m.Err())
	case <-ctx.Done():
		return nil, errs.WrapMsg(ctx.Err(), "wait mongo ready", "last", m.Err())
	}
}
