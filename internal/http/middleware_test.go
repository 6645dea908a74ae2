package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestEngine(middleware ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware...)
	router.GET("/v0/dashboard", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.POST("/v0/dashboard/refresh", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return router
}

func TestClientLimiterRejectsOverBudget(t *testing.T) {
	limiter := NewClientLimiter(1, 2)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	router := newTestEngine(limiter.Middleware())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v0/dashboard/refresh", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	req := httptest.NewRequest(http.MethodPost, "/v0/dashboard/refresh", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("other client status = %d", rec.Code)
	}

	base = base.Add(time.Second)
	req = httptest.NewRequest(http.MethodPost, "/v0/dashboard/refresh", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status after refill = %d", rec.Code)
	}
}

func TestClientLimiterDisabled(t *testing.T) {
	if limiter := NewClientLimiter(0, 5); limiter != nil {
		t.Fatalf("expected nil limiter")
	}
	var limiter *ClientLimiter
	if !limiter.Allow("anyone") {
		t.Fatalf("nil limiter must allow")
	}
}

func TestCORSMiddlewareAllowsConfiguredOrigin(t *testing.T) {
	if CORSMiddleware(nil) != nil {
		t.Fatalf("expected nil middleware without origins")
	}
	if CORSMiddleware([]string{"localhost:5173"}) != nil {
		t.Fatalf("expected origin without scheme to be ignored")
	}

	router := newTestEngine(CORSMiddleware([]string{"http://localhost:5173/"}))

	req := httptest.NewRequest(http.MethodGet, "/v0/dashboard", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v0/dashboard", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign origin status = %d", rec.Code)
	}
}

func TestNewEngineReturnsJSONNotFound(t *testing.T) {
	engine := NewEngine(EngineOptions{})
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing?access_token=abcdefghijkl", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"not found"}` {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
