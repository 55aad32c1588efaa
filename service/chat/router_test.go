package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"SocialNet/module/notification"
	notifmodel "SocialNet/module/notification/model"
)

type fakeHooks struct {
	mu  sync.Mutex
	ops []string
}

func (h *fakeHooks) Online(u string)  { h.add("+" + u) }
func (h *fakeHooks) Offline(u string) { h.add("-" + u) }
func (h *fakeHooks) add(op string) {
	h.mu.Lock()
	h.ops = append(h.ops, op)
	h.mu.Unlock()
}

type fakeNotifier struct {
	calls chan notification.TriggerInput
}

func (f *fakeNotifier) Trigger(_ context.Context, in notification.TriggerInput) (notification.Outcome, *notifmodel.View, error) {
	f.calls <- in
	return notification.OutcomeCreated, nil, nil
}

func env(event, data string) *Envelope {
	e, err := ParseEnvelope([]byte(`{"event":"` + event + `","data":` + data + `}`))
	if err != nil {
		panic(err)
	}
	return e
}

// connect 测试协程直接扮演路由协程
func connect(r *Router, ids ...string) []*Session {
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s := newSession(id, nil, "", r.cfg)
		r.handle(inbound{kind: kindConnect, s: s})
		out = append(out, s)
	}
	return out
}

func identify(r *Router, s *Session, user string) {
	r.handle(inbound{kind: kindFrame, s: s, env: env(EventIdentify, `"`+user+`"`)})
}

func drain(s *Session) []Envelope {
	var got []Envelope
	for {
		select {
		case raw := <-s.send:
			var e Envelope
			_ = json.Unmarshal(raw, &e)
			got = append(got, e)
		default:
			return got
		}
	}
}

func TestIdentifyBroadcastsSnapshot(t *testing.T) {
	r := NewRouter(Config{}, NewRegistry(), nil)
	hooks := &fakeHooks{}
	r.SetHooks(hooks)
	ss := connect(r, "c1", "c2")

	identify(r, ss[0], "A")
	for _, s := range ss {
		got := drain(s)
		if len(got) != 1 || got[0].Event != EventPresenceSnapshot || string(got[0].Data) != `["A"]` {
			t.Fatalf("%s got %+v", s.ID(), got)
		}
	}
	if ss[0].State() != StateIdentified || ss[1].State() != StateConnected {
		t.Errorf("states = %v %v", ss[0].State(), ss[1].State())
	}

	identify(r, ss[1], "B")
	got := drain(ss[0])
	if len(got) != 1 || string(got[0].Data) != `["A","B"]` {
		t.Fatalf("snapshot = %+v", got)
	}

	// 关闭：只删自己的登记，再广播
	r.handle(inbound{kind: kindClose, s: ss[1]})
	got = drain(ss[0])
	if len(got) != 1 || string(got[0].Data) != `["A"]` {
		t.Fatalf("after close = %+v", got)
	}
	if ss[1].State() != StateClosed || ss[1].Send([]byte("x")) {
		t.Error("closed session must not accept frames")
	}
	if len(hooks.ops) != 3 || hooks.ops[2] != "-B" {
		t.Errorf("hooks = %v", hooks.ops)
	}
}

func TestSupersededSessionCloseKeepsNewEntry(t *testing.T) {
	reg := NewRegistry()
	r := NewRouter(Config{}, reg, nil)
	ss := connect(r, "old", "new")
	identify(r, ss[0], "A")
	identify(r, ss[1], "A")
	r.handle(inbound{kind: kindClose, s: ss[0]})

	if s, ok := reg.Lookup("A"); !ok || s != ss[1] {
		t.Fatalf("lookup after stale close = %v %v", s, ok)
	}
}

func TestReidentifyMovesEntry(t *testing.T) {
	reg := NewRegistry()
	r := NewRouter(Config{}, reg, nil)
	ss := connect(r, "c1")
	identify(r, ss[0], "A")
	identify(r, ss[0], "B")
	if got := reg.Snapshot(); len(got) != 1 || got[0] != "B" {
		t.Errorf("snapshot = %v", got)
	}
}

func TestSendMessageForwardIfOnline(t *testing.T) {
	r := NewRouter(Config{}, NewRegistry(), nil)
	ss := connect(r, "a", "b")
	identify(r, ss[0], "A")
	identify(r, ss[1], "B")
	drain(ss[0])
	drain(ss[1])

	payload := `{"_id":"m1","text":"hi","receiverId":"B","conversationId":"c9"}`
	r.handle(inbound{kind: kindFrame, s: ss[0], env: env("sendMessage", payload)})
	got := drain(ss[1])
	if len(got) != 1 || got[0].Event != EventMessageDelivered || string(got[0].Data) != payload {
		t.Fatalf("B got %+v", got)
	}
	if len(drain(ss[0])) != 0 {
		t.Error("sender must not get a copy")
	}

	// 离线接收者：静默丢弃
	r.handle(inbound{kind: kindFrame, s: ss[0], env: env(EventSendMessage, `{"text":"x","receiverId":"Z"}`)})
	if len(drain(ss[1])) != 0 || len(drain(ss[0])) != 0 {
		t.Error("offline receiver produced deliveries")
	}
}

func TestUnidentifiedAndMalformedDropped(t *testing.T) {
	r := NewRouter(Config{}, NewRegistry(), nil)
	ss := connect(r, "anon", "b")
	identify(r, ss[1], "B")
	drain(ss[1])

	r.handle(inbound{kind: kindFrame, s: ss[0], env: env(EventSendMessage, `{"receiverId":"B"}`)})
	r.handle(inbound{kind: kindFrame, s: ss[1], env: env(EventSendMessage, `{"text":"no receiver"}`)})
	r.handle(inbound{kind: kindFrame, s: ss[1], env: env("unknown-event", `{}`)})
	r.handle(inbound{kind: kindFrame, s: ss[1], env: env(EventIdentify, `{}`)})
	if got := drain(ss[1]); len(got) != 0 {
		t.Errorf("unexpected frames %+v", got)
	}
	if ss[1].UserID() != "B" {
		t.Error("bad identify changed state")
	}
}

func TestTypingForwardsConversationOnly(t *testing.T) {
	r := NewRouter(Config{}, NewRegistry(), nil)
	ss := connect(r, "a", "b")
	identify(r, ss[0], "A")
	identify(r, ss[1], "B")
	drain(ss[1])

	r.handle(inbound{kind: kindFrame, s: ss[0], env: env("typing", `{"receiverId":"B","conversationId":"c1"}`)})
	r.handle(inbound{kind: kindFrame, s: ss[0], env: env("stopTyping", `{"receiverId":"B","conversationId":"c1"}`)})
	got := drain(ss[1])
	if len(got) != 2 || got[0].Event != EventTypingStart || got[1].Event != EventTypingStop {
		t.Fatalf("got %+v", got)
	}
	if string(got[0].Data) != `{"conversationId":"c1"}` {
		t.Errorf("typing payload = %s", got[0].Data)
	}
}

func TestAuthenticatedSessionRejectsForeignIdentify(t *testing.T) {
	reg := NewRegistry()
	r := NewRouter(Config{}, reg, nil)
	s := newSession("c1", nil, "A", r.cfg)
	r.handle(inbound{kind: kindConnect, s: s})
	identify(r, s, "B")
	if _, ok := reg.Lookup("B"); ok || s.State() != StateConnected {
		t.Fatal("identify for another user must be dropped")
	}
	identify(r, s, "A")
	if _, ok := reg.Lookup("A"); !ok {
		t.Fatal("own identify failed")
	}
}

func TestTriggerGoesThroughWorkers(t *testing.T) {
	n := &fakeNotifier{calls: make(chan notification.TriggerInput, 4)}
	r := NewRouter(Config{NotifyWorkers: 2}, NewRegistry(), n)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	defer func() {
		cancel()
		<-r.Done()
	}()

	s := newSession("c1", nil, "", r.cfg)
	if !r.Connect(s) {
		t.Fatal("connect refused")
	}
	r.Frame(s, env(EventIdentify, `"A"`))
	r.Frame(s, env("sendNotification", `{"senderId":"A","receiverId":"A","type":"like"}`))
	r.Frame(s, env("sendNotification", `{"receiverId":"B","type":"poke"}`))
	r.Frame(s, env("sendNotification", `{"senderId":"A","receiverId":"B","type":"like","postId":"P7"}`))

	select {
	case in := <-n.calls:
		if in.SenderID != "A" || in.ReceiverID != "B" || in.RelatedPostID != "P7" || in.Type != notifmodel.TypeLike {
			t.Errorf("trigger input = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notifier not called")
	}
	select {
	case in := <-n.calls:
		t.Errorf("self or invalid trigger reached the store: %+v", in)
	case <-time.After(50 * time.Millisecond):
	}
}
