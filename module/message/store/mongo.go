package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"SocialNet/data/database"
	"SocialNet/data/database/mgo/mongoutil"
	msgmodel "SocialNet/module/message/model"
	"SocialNet/tools/errs"
)

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: database.Collection(db, &msgmodel.Message{})}
}

func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	return mongoutil.EnsureIndexes(ctx, s.coll, mongoutil.Index{
		Name: "conversation_time",
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
}

func (s *Mongo) Insert(ctx context.Context, m *msgmodel.Message) error {
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return errs.WrapMsg(err, "insert message", "conversation", m.ConversationID)
	}
	return nil
}

func (s *Mongo) FindByID(ctx context.Context, id string) (*msgmodel.Message, error) {
	var m msgmodel.Message
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("Message not found", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find message", "id", id)
	}
	return &m, nil
}

func (s *Mongo) ListVisible(ctx context.Context, conversationID, viewer string, offset, limit int) ([]msgmodel.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	filter := bson.M{"conversation_id": conversationID, "deleted_for": bson.M{"$ne": viewer}}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list messages", "conversation", conversationID)
	}
	out := make([]msgmodel.Message, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

func (s *Mongo) addToSet(ctx context.Context, id, field, userID string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{field: userID}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.WrapMsg(err, "update message", "id", id, "field", field)
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("Message not found", "id", id)
	}
	return nil
}

func (s *Mongo) AddSeen(ctx context.Context, id, userID string) error {
	return s.addToSet(ctx, id, "seen_by", userID)
}

func (s *Mongo) AddDeletedFor(ctx context.Context, id, userID string) error {
	return s.addToSet(ctx, id, "deleted_for", userID)
}

func (s *Mongo) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errs.WrapMsg(err, "delete message", "id", id)
	}
	return nil
}

func (s *Mongo) DeleteByConversation(ctx context.Context, conversationID string) ([]string, int64, error) {
	filter := bson.M{"conversation_id": conversationID}
	cur, err := s.coll.Find(ctx,
		bson.M{"conversation_id": conversationID, "media": bson.M{"$nin": bson.A{nil, ""}}},
		options.Find().SetProjection(bson.M{"media": 1}),
	)
	if err != nil {
		return nil, 0, errs.WrapMsg(err, "collect media", "conversation", conversationID)
	}
	var withMedia []msgmodel.Message
	if err := cur.All(ctx, &withMedia); err != nil {
		return nil, 0, errs.Wrap(err)
	}
	media := make([]string, 0, len(withMedia))
	for _, m := range withMedia {
		media = append(media, m.Media)
	}

	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return nil, 0, errs.WrapMsg(err, "delete conversation messages", "conversation", conversationID)
	}
	return media, res.DeletedCount, nil
}
