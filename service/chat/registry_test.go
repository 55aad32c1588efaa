package chat

import (
	"reflect"
	"testing"
)

func testSession(id string) *Session {
	return newSession(id, nil, "", Config{}.Normalized())
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry()
	s1, s2 := testSession("c1"), testSession("c2")

	if prev := r.Identify("A", s1); prev != nil {
		t.Fatalf("first identify returned %v", prev)
	}
	if prev := r.Identify("A", s2); prev != s1 {
		t.Fatalf("second identify should supersede c1, got %v", prev)
	}
	if got, ok := r.Lookup("A"); !ok || got != s2 {
		t.Fatalf("lookup = %v %v", got, ok)
	}
	if prev := r.Identify("A", s2); prev != nil {
		t.Errorf("re-identify same handle returned %v", prev)
	}
}

func TestRegistryStaleRemove(t *testing.T) {
	r := NewRegistry()
	s1, s2 := testSession("c1"), testSession("c2")
	r.Identify("A", s1)
	r.Identify("A", s2)

	// 旧连接断开不能把新连接踢掉
	if r.Remove("A", s1) {
		t.Fatal("stale remove must be a no-op")
	}
	if got, _ := r.Lookup("A"); got != s2 {
		t.Fatalf("entry changed by stale remove")
	}
	if !r.Remove("A", s2) {
		t.Fatal("own remove failed")
	}
	if _, ok := r.Lookup("A"); ok {
		t.Fatal("entry still present")
	}
	if r.Remove("B", s1) {
		t.Error("remove of unknown user reported true")
	}
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewRegistry()
	for _, u := range []string{"carol", "alice", "bob"} {
		r.Identify(u, testSession(u))
	}
	if got := r.Snapshot(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Errorf("snapshot = %v", got)
	}
	if got := NewRegistry().Snapshot(); got == nil || len(got) != 0 {
		t.Errorf("empty snapshot = %#v", got)
	}
}
