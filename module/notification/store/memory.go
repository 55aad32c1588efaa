package store

import (
	"context"
	"sort"
	"sync"
	"time"

	notifmodel "SocialNet/module/notification/model"
	"SocialNet/tools/errs"
	"SocialNet/tools/ids"
)

// Memory 与 Mongo 实现语义一致：byKey 模拟四元组唯一索引，只有删除才释放
type Memory struct {
	mu    sync.Mutex
	byID  map[string]*notifmodel.Notification
	byKey map[notifmodel.Key]string
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID:  make(map[string]*notifmodel.Notification),
		byKey: make(map[notifmodel.Key]string),
		now:   time.Now,
	}
}

func (m *Memory) CreateIfAbsent(_ context.Context, key notifmodel.Key) (*notifmodel.Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[key]; ok {
		cp := *m.byID[id]
		return &cp, false, nil
	}
	rec := &notifmodel.Notification{
		ID:            ids.GenerateString(),
		SenderID:      key.SenderID,
		ReceiverID:    key.ReceiverID,
		Type:          key.Type,
		RelatedPostID: key.RelatedPostID,
		CreatedAt:     m.now().UTC().Truncate(time.Millisecond),
	}
	m.byID[rec.ID] = rec
	m.byKey[key] = rec.ID
	cp := *rec
	return &cp, true, nil
}

func (m *Memory) MarkRead(_ context.Context, receiverID, id string) (*notifmodel.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok || rec.ReceiverID != receiverID {
		return nil, errs.ErrRecordNotFound.WrapMsg("notification not found", "id", id)
	}
	rec.Read = true
	cp := *rec
	return &cp, nil
}

func (m *Memory) MarkAllRead(_ context.Context, receiverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.byID {
		if rec.ReceiverID == receiverID && !rec.Read {
			rec.Read = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) Delete(_ context.Context, receiverID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok || rec.ReceiverID != receiverID {
		return false, nil
	}
	delete(m.byKey, rec.Key())
	delete(m.byID, id)
	return true, nil
}

func (m *Memory) List(_ context.Context, receiverID string, offset, limit int) ([]notifmodel.Notification, error) {
	m.mu.Lock()
	all := make([]notifmodel.Notification, 0)
	for _, rec := range m.byID {
		if rec.ReceiverID == receiverID {
			all = append(all, *rec)
		}
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return idGreater(all[i].ID, all[j].ID)
	})
	if offset >= len(all) {
		return []notifmodel.Notification{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// idGreater 按数值比较雪花 id：位数多的更大，位数相同再按字典序
func idGreater(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (m *Memory) Count(_ context.Context, receiverID string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, unread int64
	for _, rec := range m.byID {
		if rec.ReceiverID != receiverID {
			continue
		}
		total++
		if !rec.Read {
			unread++
		}
	}
	return total, unread, nil
}
