package storage

import (
	"context"
	"sync"
	"testing"
	"time"
)

type call struct {
	user   string
	online bool
}

type fakeStore struct {
	mu    sync.Mutex
	calls []call
	state map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{state: map[string]string{}} }

func (f *fakeStore) Online(_ context.Context, user, node string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{user, true})
	f.state[user] = node
	return nil
}

func (f *fakeStore) Offline(_ context.Context, user, node string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{user, false})
	if f.state[user] == node {
		delete(f.state, user)
	}
	return nil
}

func (f *fakeStore) Lookup(_ context.Context, user string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.state[user]
	return n, ok, nil
}

func (f *fakeStore) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func TestMirrorKeepsOrder(t *testing.T) {
	store := newFakeStore()
	m := NewMirror(store, "node-1", time.Minute, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	m.Online("A")
	m.Offline("A")
	m.Online("A")
	m.Online("B")
	m.Offline("B")

	deadline := time.Now().Add(2 * time.Second)
	for len(store.snapshot()) < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-m.Done()

	want := []call{{"A", true}, {"A", false}, {"A", true}, {"B", true}, {"B", false}}
	got := store.snapshot()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if _, online, _ := store.Lookup(context.Background(), "A"); !online {
		t.Error("A should be online")
	}
	if _, online, _ := store.Lookup(context.Background(), "B"); online {
		t.Error("B should be offline")
	}
}

func TestMirrorDropsWhenFull(t *testing.T) {
	m := NewMirror(newFakeStore(), "n", time.Minute, 1)
	m.Online("A")
	m.Online("B") // 队列满，直接丢弃，不阻塞
	if len(m.ops) != 1 {
		t.Fatalf("queue len = %d", len(m.ops))
	}
}

func TestMirrorRefreshSkipsDroppedOffline(t *testing.T) {
	store := newFakeStore()
	m := NewMirror(store, "n", time.Minute, 1)
	m.Online("A")
	m.Offline("A") // 队列满被丢弃
	m.refresh(context.Background())
	for _, c := range store.snapshot() {
		if c.user == "A" {
			t.Fatalf("A refreshed after going offline: %v", store.snapshot())
		}
	}
}

func TestMirrorRefreshRestoresDroppedOnline(t *testing.T) {
	store := newFakeStore()
	m := NewMirror(store, "n", time.Minute, 1)
	m.Online("A")
	m.Online("B") // 队列满被丢弃
	m.refresh(context.Background())
	if node, online, _ := store.Lookup(context.Background(), "B"); !online || node != "n" {
		t.Errorf("B after refresh: node=%q online=%v", node, online)
	}
}

func TestKeys(t *testing.T) {
	if presenceKey("u1") != "im:presence:u1" || lastSeenKey("u1") != "im:lastseen:u1" {
		t.Error("unexpected key layout")
	}
}
