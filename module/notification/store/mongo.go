package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"SocialNet/data/database"
	"SocialNet/data/database/mgo/mongoutil"
	notifmodel "SocialNet/module/notification/model"
	"SocialNet/tools/errs"
	"SocialNet/tools/ids"
)

const insertAttempts = 3

type Mongo struct {
	coll *mongo.Collection

	// 去重路径的两次访问，测试里可替换
	insert  func(ctx context.Context, rec *notifmodel.Notification) error
	findKey func(ctx context.Context, key notifmodel.Key) (*notifmodel.Notification, error)
}

func NewMongo(db *mongo.Database) *Mongo {
	s := &Mongo{coll: database.Collection(db, &notifmodel.Notification{})}
	s.insert = s.insertOne
	s.findKey = s.findByKey
	return s
}

// EnsureIndexes 启动时调用；四元组唯一索引是去重的唯一依据，已读记录同样占位
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	return mongoutil.EnsureIndexes(ctx, s.coll,
		mongoutil.Index{
			Name:   "uniq_key",
			Keys:   bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "type", Value: 1}, {Key: "related_post_id", Value: 1}},
			Unique: true,
		},
		mongoutil.Index{
			Name: "receiver_feed",
			Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
		},
	)
}

func keyFilter(key notifmodel.Key) bson.M {
	return bson.M{
		"sender_id":       key.SenderID,
		"receiver_id":     key.ReceiverID,
		"type":            key.Type,
		"related_post_id": key.RelatedPostID,
	}
}

func (s *Mongo) insertOne(ctx context.Context, rec *notifmodel.Notification) error {
	_, err := s.coll.InsertOne(ctx, rec)
	return err
}

func (s *Mongo) findByKey(ctx context.Context, key notifmodel.Key) (*notifmodel.Notification, error) {
	var existing notifmodel.Notification
	if err := s.coll.FindOne(ctx, keyFilter(key)).Decode(&existing); err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *Mongo) CreateIfAbsent(ctx context.Context, key notifmodel.Key) (*notifmodel.Notification, bool, error) {
	for i := 0; i < insertAttempts; i++ {
		rec := &notifmodel.Notification{
			ID:            ids.GenerateString(),
			SenderID:      key.SenderID,
			ReceiverID:    key.ReceiverID,
			Type:          key.Type,
			RelatedPostID: key.RelatedPostID,
			CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		}
		err := s.insert(ctx, rec)
		if err == nil {
			return rec, true, nil
		}
		if !mongoutil.IsDuplicate(err) {
			return nil, false, errs.WrapMsg(err, "insert notification", "receiver", key.ReceiverID)
		}

		existing, err := s.findKey(ctx, key)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, errs.WrapMsg(err, "find duplicate notification", "receiver", key.ReceiverID)
		}
		// 冲突记录在两次操作之间被删除，重新插入
	}
	return nil, false, errs.ErrInternalServer.WrapMsg("notification insert kept conflicting", "receiver", key.ReceiverID)
}

func (s *Mongo) MarkRead(ctx context.Context, receiverID, id string) (*notifmodel.Notification, error) {
	var rec notifmodel.Notification
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "receiver_id": receiverID},
		bson.M{"$set": bson.M{"read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("notification not found", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "mark notification read", "id", id)
	}
	return &rec, nil
}

func (s *Mongo) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"receiver_id": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "mark all read", "receiver", receiverID)
	}
	return res.ModifiedCount, nil
}

func (s *Mongo) Delete(ctx context.Context, receiverID, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "receiver_id": receiverID})
	if err != nil {
		return false, errs.WrapMsg(err, "delete notification", "id", id)
	}
	return res.DeletedCount > 0, nil
}

func (s *Mongo) List(ctx context.Context, receiverID string, offset, limit int) ([]notifmodel.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.M{"receiver_id": receiverID}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list notifications", "receiver", receiverID)
	}
	out := make([]notifmodel.Notification, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

func (s *Mongo) Count(ctx context.Context, receiverID string) (int64, int64, error) {
	total, err := s.coll.CountDocuments(ctx, bson.M{"receiver_id": receiverID})
	if err != nil {
		return 0, 0, errs.WrapMsg(err, "count notifications", "receiver", receiverID)
	}
	unread, err := s.coll.CountDocuments(ctx, bson.M{"receiver_id": receiverID, "read": false})
	if err != nil {
		return 0, 0, errs.WrapMsg(err, "count unread", "receiver", receiverID)
	}
	return total, unread, nil
}
