package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"SocialNet/middleware"
	midsec "SocialNet/middleware/security"
	"SocialNet/module/notification"
	notifstore "SocialNet/module/notification/store"
	postmodel "SocialNet/module/post/model"
	poststore "SocialNet/module/post/store"
	usermodel "SocialNet/module/user/model"
	userstore "SocialNet/module/user/store"
	"SocialNet/tools/security"
)

var wsJWT = security.DefaultOptions([]byte("ws-test"))

type testServer struct {
	url    string
	notifs *notification.Service
}

func startServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()
	users := userstore.NewMemory(usermodel.User{ID: "A", Name: "Alice", ProfilePic: "a.png"})
	posts := poststore.NewMemory(postmodel.Post{ID: "P7", Content: "hello"})
	notifs := notification.NewService(notifstore.NewMemory(), users, posts, NewOutbox(reg), nil)
	router := NewRouter(cfg, reg, notifs)

	ctx, cancel := context.WithCancel(context.Background())
	go router.Run(ctx)

	auth := midsec.Options{JWT: wsJWT}
	e := gin.New()
	NewWSServer(cfg, router, auth).Register(middleware.Routes{R: e, Auth: midsec.Middleware(auth)})
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		cancel()
		<-router.Done()
		srv.Close()
	})
	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", notifs: notifs}
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, event, data string) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"event":"`+event+`","data":`+data+`}`)); err != nil {
		t.Fatal(err)
	}
}

// expect 读到指定事件为止，跳过其他事件
func expect(t *testing.T, c *websocket.Conn, event string) Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = c.SetReadDeadline(deadline)
		_, raw, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var e Envelope
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatal(err)
		}
		if e.Event == event {
			return e
		}
	}
}

func TestWebsocketEndToEnd(t *testing.T) {
	ts := startServer(t, Config{})
	a := dial(t, ts.url, nil)
	b := dial(t, ts.url, nil)

	send(t, a, "addUser", `"A"`)
	expect(t, a, EventPresenceSnapshot)
	send(t, b, EventIdentify, `{"userId":"B"}`)
	snap := expect(t, a, EventPresenceSnapshot)
	if string(snap.Data) != `["A","B"]` {
		t.Fatalf("snapshot = %s", snap.Data)
	}

	msg := `{"_id":"m1","conversationId":"c1","text":"hi","receiverId":"B"}`
	send(t, a, EventSendMessage, msg)
	got := expect(t, b, EventMessageDelivered)
	if string(got.Data) != msg {
		t.Errorf("forwarded = %s", got.Data)
	}

	send(t, a, "typing", `{"receiverId":"B","conversationId":"c1"}`)
	if got := expect(t, b, EventTypingStart); string(got.Data) != `{"conversationId":"c1"}` {
		t.Errorf("typing = %s", got.Data)
	}

	send(t, a, "sendNotification", `{"senderId":"A","receiverId":"B","type":"like","postId":"P7"}`)
	n := expect(t, b, notification.EventDelivered)
	var view struct {
		SenderID struct {
			Name string `json:"name"`
		} `json:"senderId"`
		PostID struct {
			Content string `json:"content"`
		} `json:"postId"`
	}
	if err := json.Unmarshal(n.Data, &view); err != nil {
		t.Fatal(err)
	}
	if view.SenderID.Name != "Alice" || view.PostID.Content != "hello" {
		t.Errorf("notification view = %s", n.Data)
	}

	// B 断开后 A 收到新的在线列表
	_ = b.Close()
	snap = expect(t, a, EventPresenceSnapshot)
	if string(snap.Data) != `["A"]` {
		t.Errorf("snapshot after close = %s", snap.Data)
	}

	page, err := ts.notifs.List(context.Background(), "B", 1, 10)
	if err != nil || page.UnreadCount != 1 {
		t.Errorf("unread = %+v %v", page, err)
	}
}

func TestWebsocketAuth(t *testing.T) {
	ts := startServer(t, Config{RequireAuth: true})

	if _, resp, err := websocket.DefaultDialer.Dial(ts.url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous upgrade should be refused, err=%v", err)
	}
	if _, resp, err := websocket.DefaultDialer.Dial(ts.url+"?token=garbage", nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token should be refused, err=%v", err)
	}

	tok, _, err := security.Generate(wsJWT, "A")
	if err != nil {
		t.Fatal(err)
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok)
	a := dial(t, ts.url, h)

	send(t, a, EventIdentify, `"B"`) // 与令牌不符，丢弃
	send(t, a, EventIdentify, `"A"`)
	snap := expect(t, a, EventPresenceSnapshot)
	if string(snap.Data) != `["A"]` {
		t.Errorf("snapshot = %s", snap.Data)
	}
}
