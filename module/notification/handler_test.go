package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"SocialNet/middleware"
	midsec "SocialNet/middleware/security"
	notifmodel "SocialNet/module/notification/model"
	"SocialNet/tools/security"
)

var testJWT = security.DefaultOptions([]byte("handler-test"))

func newTestEngine(t *testing.T) (*gin.Engine, *fakeOutbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, out := newTestService()
	e := gin.New()
	NewHandler(svc).Register(middleware.Routes{R: e, Auth: midsec.Middleware(midsec.Options{JWT: testJWT})})
	return e, out
}

func do(t *testing.T, e *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		tok, _, err := security.Generate(testJWT, user)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestHandlerFlow(t *testing.T) {
	e, out := newTestEngine(t)
	out.setOnline("B")

	w := do(t, e, http.MethodPost, "/api/notifications", "A", `{"receiverId":"B","type":"like","postId":"P7"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("trigger status = %d body=%s", w.Code, w.Body.String())
	}
	w = do(t, e, http.MethodPost, "/api/notifications", "A", `{"receiverId":"B","type":"like","relatedPostId":"P7"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "duplicate") {
		t.Fatalf("duplicate trigger = %d %s", w.Code, w.Body.String())
	}
	if len(out.deliveries()) != 1 {
		t.Errorf("deliveries = %d", len(out.deliveries()))
	}

	w = do(t, e, http.MethodGet, "/api/notifications?page=1&size=10", "B", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var page notifmodel.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.UnreadCount != 1 || len(page.Notifications) != 1 || page.Notifications[0].Sender.Name != "Alice" {
		t.Fatalf("page = %+v", page)
	}
	id := page.Notifications[0].ID

	if w := do(t, e, http.MethodPut, "/api/notifications/"+id+"/read", "C", ""); w.Code != http.StatusNotFound {
		t.Errorf("foreign mark read = %d", w.Code)
	}
	if w := do(t, e, http.MethodPut, "/api/notifications/"+id+"/read", "B", ""); w.Code != http.StatusOK {
		t.Errorf("mark read = %d", w.Code)
	}
	if w := do(t, e, http.MethodPut, "/api/notifications/mark-all-seen", "B", ""); w.Code != http.StatusOK {
		t.Errorf("mark all = %d", w.Code)
	}
	if w := do(t, e, http.MethodDelete, "/api/notifications/"+id, "B", ""); w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestHandlerRejects(t *testing.T) {
	e, _ := newTestEngine(t)
	if w := do(t, e, http.MethodGet, "/api/notifications", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list = %d", w.Code)
	}
	if w := do(t, e, http.MethodPost, "/api/notifications", "A", `{"receiverId":"B","type":"poke"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad type = %d", w.Code)
	}
	if w := do(t, e, http.MethodPost, "/api/notifications", "A", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", w.Code)
	}
	w := do(t, e, http.MethodPost, "/api/notifications", "A", `{"receiverId":"A","type":"like"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "self") {
		t.Errorf("self = %d %s", w.Code, w.Body.String())
	}
}
