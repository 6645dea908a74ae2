package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashvest/minerdash/internal/config"
)

func newBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	purchaseCalls := &atomic.Int32{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"token":"opaque-token"}}`))
	})
	mux.HandleFunc("/api/purchases", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		purchaseCalls.Add(1)
		_, _ = w.Write([]byte(`{"purchases":[{"id":"p-1","engine_name":"S19","amount_invested":"100","total_earned":"1","daily_earning":"0.5","earning_interval":"daily","start_date":"2026-03-01T00:00:00Z","end_date":"2026-03-31T00:00:00Z","total_periods":30,"periods_elapsed":2}]}`))
	})
	mux.HandleFunc("/api/earnings/summary", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"today":"0.5","lifetime":"1","upcoming_maturities":[]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, purchaseCalls
}

func testConfig(t *testing.T, backendURL string) config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.BaseURL = backendURL + "/api"
	cfg.Backend.RatePerSecond = -1
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "minerdash.db")
	cfg.Poller.Interval = time.Hour
	cfg.Server.WriteRatePerSecond = 0
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("validate: %v", errValidate)
	}
	return cfg
}

func TestLoginStartsPollingAndServesDashboard(t *testing.T) {
	server, purchaseCalls := newBackend(t)
	cfg := testConfig(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, errBuild := Build(ctx, cfg)
	if errBuild != nil {
		t.Fatalf("build: %v", errBuild)
	}
	defer components.Close()
	components.Start(ctx)
	defer components.Stop(context.Background())

	if components.Poller.Running() {
		t.Fatalf("poller must not run without a session")
	}

	router := components.Router(cfg)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("dashboard before login: expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v0/session/login", strings.NewReader(`{"phone":"0912345678","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(components.Poller.Snapshots()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if purchaseCalls.Load() == 0 || len(components.Poller.Snapshots()) != 1 {
		t.Fatalf("expected one polled purchase, calls=%d", purchaseCalls.Load())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", w.Code)
	}
	var resp struct {
		Purchases []struct {
			ID string `json:"id"`
		} `json:"purchases"`
		Promo struct {
			RemainingSeconds int64 `json:"remaining_seconds"`
		} `json:"promo"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if len(resp.Purchases) != 1 || resp.Purchases[0].ID != "p-1" {
		t.Fatalf("unexpected purchases: %+v", resp.Purchases)
	}
	if resp.Promo.RemainingSeconds <= 0 || resp.Promo.RemainingSeconds > int64(cfg.Countdown.Duration/time.Second) {
		t.Fatalf("unexpected promo remaining %d", resp.Promo.RemainingSeconds)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v0/session/logout", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}
	if components.Poller.Running() {
		t.Fatalf("poller must stop on logout")
	}
	if left := components.Poller.Snapshots(); len(left) != 0 {
		t.Fatalf("signed-out purchases still held: %+v", left)
	}
	if entries := components.Engine.Entries(); len(entries) != 0 {
		t.Fatalf("signed-out countdown entries still held: %d", len(entries))
	}
	phone, errPhone := components.Sessions.Phone(ctx)
	if errPhone != nil || phone != "0912345678" {
		t.Fatalf("phone kept for autofill: %q %v", phone, errPhone)
	}
}

func TestPersistedCountdownSurvivesRestart(t *testing.T) {
	server, _ := newBackend(t)
	cfg := testConfig(t, server.URL)
	ctx := context.Background()

	first, errBuild := Build(ctx, cfg)
	if errBuild != nil {
		t.Fatalf("build: %v", errBuild)
	}
	first.Start(ctx)
	first.Stop(ctx)
	remaining := first.Promo.Remaining()
	first.Close()

	second, errBuild := Build(ctx, cfg)
	if errBuild != nil {
		t.Fatalf("rebuild: %v", errBuild)
	}
	defer second.Close()
	if errActivate := second.Promo.Activate(ctx, time.Now()); errActivate != nil {
		t.Fatalf("activate: %v", errActivate)
	}
	got := second.Promo.Remaining()
	if got > remaining || remaining-got > 5 {
		t.Fatalf("expected resumed countdown near %d, got %d", remaining, got)
	}
}

func TestMigrateSkipsNonTableDrivers(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	if errMigrate := Migrate(context.Background(), cfg); errMigrate != nil {
		t.Fatalf("migrate memory: %v", errMigrate)
	}

	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "nested", "minerdash.db")
	if errMigrate := Migrate(context.Background(), cfg); errMigrate != nil {
		t.Fatalf("migrate sqlite: %v", errMigrate)
	}
}
