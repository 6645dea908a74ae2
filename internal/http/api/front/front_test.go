package front

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/poller"
)

type stubSessions struct {
	loggedIn bool
}

func (s *stubSessions) Login(context.Context, string, string) error {
	s.loggedIn = true
	return nil
}
func (s *stubSessions) Logout(context.Context) error          { s.loggedIn = false; return nil }
func (s *stubSessions) LoggedIn(context.Context) bool         { return s.loggedIn }
func (s *stubSessions) Phone(context.Context) (string, error) { return "", nil }

type stubDashboard struct{}

func (stubDashboard) View() poller.View             { return poller.View{} }
func (stubDashboard) Refresh(context.Context) error { return nil }
func (stubDashboard) Busy() bool                    { return false }
func (stubDashboard) DismissError()                 {}

func TestDashboardRoutesRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &stubSessions{}
	router := gin.New()
	RegisterFrontRoutes(router, Deps{Sessions: sessions, Dashboard: stubDashboard{}, StorageDriver: "memory"})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v0/dashboard"},
		{http.MethodPost, "/v0/dashboard/refresh"},
		{http.MethodGet, "/v0/countdown"},
		{http.MethodPost, "/v0/purchases"},
	}
	for _, p := range paths {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", p.method, p.path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"storage":"memory"`) || !strings.Contains(body, `"polling":false`) {
		t.Fatalf("healthz body = %s", body)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/session/login", strings.NewReader(`{"phone":"0912","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard after login: expected 200, got %d", w.Code)
	}
}

func TestWriteLimitGuardsMutatingRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterFrontRoutes(router, Deps{
		Sessions:  &stubSessions{loggedIn: true},
		Dashboard: stubDashboard{},
		WriteLimit: func(c *gin.Context) {
			c.AbortWithStatus(http.StatusTooManyRequests)
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v0/dashboard/refresh", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("refresh: expected 429, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", w.Code)
	}
}
