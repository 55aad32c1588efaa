package chat

import (
	"sort"
	"sync"
)

// Presence 在线表。每个用户最多一条连接，后到的覆盖先到的
type Presence interface {
	// Identify 登记 user -> s，返回被顶掉的旧连接（可能为 nil）
	Identify(userID string, s *Session) *Session
	Lookup(userID string) (*Session, bool)
	// Remove 仅当登记的仍是 s 时才删除
	Remove(userID string, s *Session) bool
	Snapshot() []string
}

type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Session)}
}

func (r *Registry) Identify(userID string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.byUser[userID]
	r.byUser[userID] = s
	if prev == s {
		return nil
	}
	return prev
}

func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

func (r *Registry) Remove(userID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[userID]; !ok || cur != s {
		return false
	}
	delete(r.byUser, userID)
	return true
}

func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
