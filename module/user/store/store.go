package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"SocialNet/data/database"
	usermodel "SocialNet/module/user/model"
	"SocialNet/tools/errs"
)

// Store 用户展示信息查询
type Store interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]usermodel.User, error)
}

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: database.Collection(db, &usermodel.User{})}
}

func (s *Mongo) FindByIDs(ctx context.Context, ids []string) (map[string]usermodel.User, error) {
	out := make(map[string]usermodel.User, len(ids))
	ids = uniq(ids)
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "username": 1, "profilePic": 1})
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": database.IDValues(ids)}}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find users", "count", len(ids))
	}
	var users []usermodel.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, errs.Wrap(err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// Memory 测试和本地开发用
type Memory struct {
	mu    sync.RWMutex
	users map[string]usermodel.User
}

func NewMemory(users ...usermodel.User) *Memory {
	m := &Memory{users: make(map[string]usermodel.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *Memory) Put(u usermodel.User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *Memory) FindByIDs(_ context.Context, ids []string) (map[string]usermodel.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]usermodel.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
