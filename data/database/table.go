package database

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Table interface {
	GetTableName() string
}

// Collection 按模型表名取集合
func Collection(db *mongo.Database, t Table) *mongo.Collection {
	return db.Collection(t.GetTableName())
}

// IDValues 外部系统写入的主键可能是 ObjectID 也可能是字符串，$in 时两种都带上
func IDValues(ids []string) []any {
	out := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		out = append(out, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

// IDValue 单个主键的匹配条件
func IDValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return map[string]any{"$in": []any{id, oid}}
	}
	return id
}
