package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "http://a", true},
		{[]string{"*"}, "http://a", true},
		{[]string{"http://a/"}, "http://a", true},
		{[]string{"http://a"}, "http://b", false},
		{[]string{"http://a"}, "", true},
	}
	for _, tt := range tests {
		if got := OriginAllowed(tt.allowed, tt.origin); got != tt.want {
			t.Errorf("OriginAllowed(%v, %q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

func TestRoutesAuthChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	rt := Routes{R: e, Auth: deny}
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	rt.GET("/open", ok, RouteOpt{})
	rt.DELETE("/closed", ok, RouteOpt{IsAuth: true})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/open status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/closed", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/closed status = %d", w.Code)
	}
}

func TestManagerStopsOnAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	called := false
	m := NewManager(
		func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) },
		func(c *gin.Context) { called = true },
	)
	e := gin.New()
	e.Use(m.Use(), Recovery())
	e.GET("/", func(c *gin.Context) { called = true })
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTeapot || called {
		t.Errorf("status = %d called = %v", w.Code, called)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Recovery())
	e.GET("/boom", func(*gin.Context) { panic("boom") })
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}
