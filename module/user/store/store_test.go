package store

import (
	"context"
	"testing"

	usermodel "SocialNet/module/user/model"
)

func TestMemoryFindByIDs(t *testing.T) {
	m := NewMemory(usermodel.User{ID: "a", Name: "Alice"})
	m.Put(usermodel.User{ID: "b", Name: "Bob"})
	got, err := m.FindByIDs(context.Background(), []string{"a", "b", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["a"].Name != "Alice" || got["b"].Name != "Bob" {
		t.Errorf("FindByIDs() = %v", got)
	}
}

func TestUniq(t *testing.T) {
	got := uniq([]string{"a", "", "b", "a"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("uniq() = %v", got)
	}
}
