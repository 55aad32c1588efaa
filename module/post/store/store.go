package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"SocialNet/data/database"
	postmodel "SocialNet/module/post/model"
	"SocialNet/tools/errs"
)

type Store interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]postmodel.Post, error)
}

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: database.Collection(db, &postmodel.Post{})}
}

func (s *Mongo) FindByIDs(ctx context.Context, ids []string) (map[string]postmodel.Post, error) {
	out := make(map[string]postmodel.Post, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"text": 1, "image": 1})
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": database.IDValues(ids)}}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find posts", "count", len(ids))
	}
	var posts []postmodel.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, errs.Wrap(err)
	}
	for _, p := range posts {
		out[p.ID] = p
	}
	return out, nil
}

type Memory struct {
	mu    sync.RWMutex
	posts map[string]postmodel.Post
}

func NewMemory(posts ...postmodel.Post) *Memory {
	m := &Memory{posts: make(map[string]postmodel.Post)}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *Memory) FindByIDs(_ context.Context, ids []string) (map[string]postmodel.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]postmodel.Post, len(ids))
	for _, id := range ids {
		if p, ok := m.posts[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
