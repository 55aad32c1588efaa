package store

import (
	"context"
	"sort"
	"sync"
	"time"

	msgmodel "SocialNet/module/message/model"
	"SocialNet/tools/errs"
)

type Memory struct {
	mu   sync.RWMutex
	byID map[string]*msgmodel.Message
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]*msgmodel.Message)}
}

func clone(m *msgmodel.Message) msgmodel.Message {
	cp := *m
	cp.SeenBy = append([]string{}, m.SeenBy...)
	cp.DeletedFor = append([]string{}, m.DeletedFor...)
	return cp
}

func (s *Memory) Insert(_ context.Context, m *msgmodel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clone(m)
	s.byID[m.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, id string) (*msgmodel.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("Message not found", "id", id)
	}
	cp := clone(m)
	return &cp, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (s *Memory) ListVisible(_ context.Context, conversationID, viewer string, offset, limit int) ([]msgmodel.Message, error) {
	s.mu.RLock()
	out := make([]msgmodel.Message, 0)
	for _, m := range s.byID {
		if m.ConversationID == conversationID && !contains(m.DeletedFor, viewer) {
			out = append(out, clone(m))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return []msgmodel.Message{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (s *Memory) addToSet(id string, pick func(*msgmodel.Message) *[]string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("Message not found", "id", id)
	}
	set := pick(m)
	if !contains(*set, userID) {
		*set = append(*set, userID)
		m.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Memory) AddSeen(_ context.Context, id, userID string) error {
	return s.addToSet(id, func(m *msgmodel.Message) *[]string { return &m.SeenBy }, userID)
}

func (s *Memory) AddDeletedFor(_ context.Context, id, userID string) error {
	return s.addToSet(id, func(m *msgmodel.Message) *[]string { return &m.DeletedFor }, userID)
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
	return nil
}

func (s *Memory) DeleteByConversation(_ context.Context, conversationID string) ([]string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		media []string
		n     int64
	)
	for id, m := range s.byID {
		if m.ConversationID != conversationID {
			continue
		}
		if m.Media != "" {
			media = append(media, m.Media)
		}
		delete(s.byID, id)
		n++
	}
	return media, n, nil
}
