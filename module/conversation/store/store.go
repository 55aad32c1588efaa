package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"SocialNet/data/database"
	"SocialNet/data/database/mgo/mongoutil"
	convmodel "SocialNet/module/conversation/model"
	"SocialNet/tools/errs"
)

type Store interface {
	// Insert 单聊 direct_key 冲突时返回 ErrDuplicateKey
	Insert(ctx context.Context, c *convmodel.Conversation) error
	FindByID(ctx context.Context, id string) (*convmodel.Conversation, error)
	FindDirect(ctx context.Context, a, b string) (*convmodel.Conversation, error)
	ListByMember(ctx context.Context, userID string) ([]convmodel.Conversation, error)
	Delete(ctx context.Context, id string) error
	// Touch 有新消息时刷新 updated_at
	Touch(ctx context.Context, id string, at time.Time) error
}

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: database.Collection(db, &convmodel.Conversation{})}
}

func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	return mongoutil.EnsureIndexes(ctx, s.coll,
		mongoutil.Index{
			Name:    "uniq_direct",
			Keys:    bson.D{{Key: "direct_key", Value: 1}},
			Unique:  true,
			Partial: bson.M{"is_group": false},
		},
		mongoutil.Index{
			Name: "member_updated",
			Keys: bson.D{{Key: "members", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	)
}

func (s *Mongo) Insert(ctx context.Context, c *convmodel.Conversation) error {
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		if mongoutil.IsDuplicate(err) {
			return errs.ErrDuplicateKey.WrapMsg("conversation exists", "direct_key", c.DirectKey)
		}
		return errs.WrapMsg(err, "insert conversation")
	}
	return nil
}

func (s *Mongo) findOne(ctx context.Context, filter bson.M) (*convmodel.Conversation, error) {
	var c convmodel.Conversation
	err := s.coll.FindOne(ctx, filter).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find conversation")
	}
	return &c, nil
}

func (s *Mongo) FindByID(ctx context.Context, id string) (*convmodel.Conversation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Mongo) FindDirect(ctx context.Context, a, b string) (*convmodel.Conversation, error) {
	return s.findOne(ctx, bson.M{"is_group": false, "direct_key": convmodel.DirectKey(a, b)})
}

func (s *Mongo) ListByMember(ctx context.Context, userID string) ([]convmodel.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list conversations", "user", userID)
	}
	var out []convmodel.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

func (s *Mongo) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errs.WrapMsg(err, "delete conversation", "id", id)
	}
	return nil
}

func (s *Mongo) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"updated_at": at}}); err != nil {
		return errs.WrapMsg(err, "touch conversation", "id", id)
	}
	return nil
}

type Memory struct {
	mu   sync.RWMutex
	byID map[string]convmodel.Conversation
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]convmodel.Conversation)}
}

func (m *Memory) Insert(_ context.Context, c *convmodel.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !c.IsGroup && c.DirectKey != "" {
		for _, x := range m.byID {
			if !x.IsGroup && x.DirectKey == c.DirectKey {
				return errs.ErrDuplicateKey.WrapMsg("conversation exists", "direct_key", c.DirectKey)
			}
		}
	}
	cp := *c
	cp.Members = append([]string(nil), c.Members...)
	m.byID[c.ID] = cp
	return nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*convmodel.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found", "id", id)
	}
	return &c, nil
}

func (m *Memory) FindDirect(_ context.Context, a, b string) (*convmodel.Conversation, error) {
	key := convmodel.DirectKey(a, b)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.byID {
		if !c.IsGroup && c.DirectKey == key {
			c := c
			return &c, nil
		}
	}
	return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found")
}

func (m *Memory) ListByMember(_ context.Context, userID string) ([]convmodel.Conversation, error) {
	m.mu.RLock()
	out := make([]convmodel.Conversation, 0)
	for _, c := range m.byID {
		if c.HasMember(userID) {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byID[id]; ok {
		c.UpdatedAt = at
		m.byID[id] = c
	}
	return nil
}
