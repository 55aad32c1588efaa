package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	notifmodel "SocialNet/module/notification/model"
	"SocialNet/tools/errs"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Mongo)(nil)
)

func like(sender, receiver, post string) notifmodel.Key {
	return notifmodel.Key{SenderID: sender, ReceiverID: receiver, Type: notifmodel.TypeLike, RelatedPostID: post}
}

func TestCreateIfAbsentDedup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, created, err := m.CreateIfAbsent(ctx, like("A", "B", "P7"))
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	second, created, err := m.CreateIfAbsent(ctx, like("A", "B", "P7"))
	if err != nil || created {
		t.Fatalf("second create: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate should return existing record")
	}

	// 不同帖子、不同类型都是新记录
	if _, created, _ := m.CreateIfAbsent(ctx, like("A", "B", "P8")); !created {
		t.Error("different post should create")
	}
	if _, created, _ := m.CreateIfAbsent(ctx, notifmodel.Key{SenderID: "A", ReceiverID: "B", Type: notifmodel.TypeFollow}); !created {
		t.Error("different type should create")
	}

	total, unread, _ := m.Count(ctx, "B")
	if total != 3 || unread != 3 {
		t.Errorf("count = %d/%d", total, unread)
	}
}

func TestReadRecordStillBlocksDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec, _, _ := m.CreateIfAbsent(ctx, like("A", "B", "P7"))
	if _, err := m.MarkRead(ctx, "B", rec.ID); err != nil {
		t.Fatal(err)
	}
	again, created, err := m.CreateIfAbsent(ctx, like("A", "B", "P7"))
	if err != nil || created || again.ID != rec.ID || !again.Read {
		t.Fatalf("after MarkRead: created=%v rec=%+v err=%v", created, again, err)
	}

	other, _, _ := m.CreateIfAbsent(ctx, like("A", "B", "P8"))
	if _, err := m.MarkAllRead(ctx, "B"); err != nil {
		t.Fatal(err)
	}
	if _, created, _ := m.CreateIfAbsent(ctx, like("A", "B", "P8")); created {
		t.Errorf("MarkAllRead must not free %s", other.ID)
	}
	if total, _, _ := m.Count(ctx, "B"); total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, created, _ := m.CreateIfAbsent(ctx, like("A", "B", "")); created {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

func TestMarkReadScopedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec, _, _ := m.CreateIfAbsent(ctx, like("A", "B", ""))

	if _, err := m.MarkRead(ctx, "C", rec.ID); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Errorf("other receiver: got %v", err)
	}
	for i := 0; i < 2; i++ {
		got, err := m.MarkRead(ctx, "B", rec.ID)
		if err != nil || !got.Read {
			t.Fatalf("MarkRead #%d: %+v %v", i, got, err)
		}
	}
	n, _ := m.MarkAllRead(ctx, "B")
	if n != 0 {
		t.Errorf("MarkAllRead after read = %d", n)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec, _, _ := m.CreateIfAbsent(ctx, like("A", "B", ""))
	if ok, _ := m.Delete(ctx, "C", rec.ID); ok {
		t.Error("other receiver must not delete")
	}
	if ok, _ := m.Delete(ctx, "B", rec.ID); !ok {
		t.Error("first delete should report true")
	}
	if ok, err := m.Delete(ctx, "B", rec.ID); ok || err != nil {
		t.Errorf("second delete = %v, %v", ok, err)
	}
	if _, created, _ := m.CreateIfAbsent(ctx, like("A", "B", "")); !created {
		t.Error("deleted record must release its key")
	}
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(time.Second), base.Add(time.Second), base.Add(2 * time.Second)}
	i := 0
	m.now = func() time.Time { ts := clock[i]; i++; return ts }

	var created []string
	for _, p := range []string{"p1", "p2", "p3", "p4"} {
		rec, _, _ := m.CreateIfAbsent(ctx, like("A", "B", p))
		created = append(created, rec.ID)
	}
	got, _ := m.List(ctx, "B", 0, 10)
	want := []string{created[3], created[2], created[1], created[0]}
	for k := range want {
		if got[k].ID != want[k] {
			t.Fatalf("order[%d] = %s, want %s", k, got[k].ID, want[k])
		}
	}

	page, _ := m.List(ctx, "B", 3, 10)
	if len(page) != 1 || page[0].ID != created[0] {
		t.Errorf("offset page = %v", page)
	}
	if empty, _ := m.List(ctx, "B", 10, 10); len(empty) != 0 {
		t.Errorf("past end = %v", empty)
	}
}

func TestIDGreaterNumeric(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"10", "9", true},
		{"9", "10", false},
		{"1234567890123456790", "1234567890123456789", true},
		{"123", "123", false},
	}
	for _, c := range cases {
		if got := idGreater(c.a, c.b); got != c.want {
			t.Errorf("idGreater(%s, %s) = %v", c.a, c.b, got)
		}
	}
}
