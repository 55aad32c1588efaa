package database

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIDValues(t *testing.T) {
	oid := primitive.NewObjectID()
	vals := IDValues([]string{"plain", oid.Hex()})
	if len(vals) != 3 {
		t.Fatalf("IDValues() = %v", vals)
	}
	if vals[2] != oid {
		t.Errorf("expected ObjectID variant, got %v", vals[2])
	}
	if IDValue("plain") != "plain" {
		t.Error("plain id should match directly")
	}
	if _, ok := IDValue(oid.Hex()).(map[string]any); !ok {
		t.Error("hex id should expand to $in")
	}
}
