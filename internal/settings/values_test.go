package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hashvest/minerdash/internal/models"
	"gorm.io/gorm"
)

func TestParseInt(t *testing.T) {
	cases := map[string]int{
		`15`:              15,
		`15.4`:            15,
		`"20"`:            20,
		`{"value": 30}`:   30,
		`{"value": "45"}`: 45,
	}
	for raw, want := range cases {
		got, ok := ParseInt(json.RawMessage(raw))
		if !ok || got != want {
			t.Fatalf("ParseInt(%s) = %d,%v want %d", raw, got, ok, want)
		}
	}
	for _, raw := range []string{``, `"abc"`, `true`, `[1]`} {
		if _, ok := ParseInt(json.RawMessage(raw)); ok {
			t.Fatalf("ParseInt(%q) expected failure", raw)
		}
	}
}

func TestPollIntervalDefaultsAndFloor(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	StoreDBConfig(time.Now(), nil)
	if got := PollInterval(); got != 15*time.Second {
		t.Fatalf("default interval = %s", got)
	}

	StoreDBConfig(time.Now(), map[string]json.RawMessage{PollIntervalSecondsKey: json.RawMessage(`2`)})
	if got := PollInterval(); got != 5*time.Second {
		t.Fatalf("floored interval = %s", got)
	}

	StoreDBConfig(time.Now(), map[string]json.RawMessage{PollIntervalSecondsKey: json.RawMessage(`"30"`)})
	if got := PollInterval(); got != 30*time.Second {
		t.Fatalf("configured interval = %s", got)
	}
}

func TestCountdownSettingsFallBackOnNonPositive(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		CountdownDefaultSecondsKey:  json.RawMessage(`0`),
		CountdownCheckpointTicksKey: json.RawMessage(`-3`),
	})
	if got := CountdownDefault(); got != 12*time.Hour {
		t.Fatalf("countdown default = %s", got)
	}
	if got := CountdownCheckpointTicks(); got != 60 {
		t.Fatalf("checkpoint ticks = %d", got)
	}
}

func TestRefreshDBConfigSnapshotLoadsRows(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	updatedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := []models.Setting{
		{Key: PollIntervalSecondsKey, Value: json.RawMessage(`25`), UpdatedAt: updatedAt},
		{Key: CountdownCheckpointTicksKey, Value: json.RawMessage(`10`), UpdatedAt: updatedAt.Add(-time.Hour)},
	}
	if errCreate := conn.Create(&rows).Error; errCreate != nil {
		t.Fatalf("seed settings: %v", errCreate)
	}

	changed, errRefresh := RefreshDBConfigSnapshot(context.Background(), conn)
	if errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if !changed {
		t.Fatalf("expected first load to report a change")
	}
	if got := PollInterval(); got != 25*time.Second {
		t.Fatalf("poll interval = %s", got)
	}
	if got := CountdownCheckpointTicks(); got != 10 {
		t.Fatalf("checkpoint ticks = %d", got)
	}
	if got := DBConfigUpdatedAt(); !got.Equal(updatedAt) {
		t.Fatalf("updated at = %s", got)
	}
	changed, errRefresh = RefreshDBConfigSnapshot(context.Background(), conn)
	if errRefresh != nil || changed {
		t.Fatalf("second load: changed=%v err=%v", changed, errRefresh)
	}
}

func TestRefresherPicksUpChangedRows(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	dsn := fmt.Sprintf("file:settings_refresher_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if NewRefresher(nil, time.Second) != nil {
		t.Fatalf("expected nil refresher without db")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewRefresher(conn, 10*time.Millisecond).Start(ctx)

	row := models.Setting{Key: PollIntervalSecondsKey, Value: json.RawMessage(`40`)}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed setting: %v", errCreate)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if PollInterval() == 40*time.Second {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("poll interval not refreshed, got %s", PollInterval())
}
