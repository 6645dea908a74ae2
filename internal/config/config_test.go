package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("MINERDASH_DATA_DIR", t.TempDir())

	cfg, errLoad := Load("")
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("expected no config path, got %q", cfg.ConfigPath)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Countdown.Duration != 12*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if filepath.Base(cfg.DatabaseDSN()) != defaultSQLiteFile {
		t.Fatalf("unexpected default dsn %q", cfg.DatabaseDSN())
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, errLoad := Load(filepath.Join(t.TempDir(), "nope.yaml")); errLoad == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadParsesFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 0.0.0.0:9000
  cors-origins: ["http://localhost:5173"]
backend:
  base-url: https://api.example.com/v1/
  request-timeout: 5s
storage:
  driver: Postgres
  dsn: postgres://u:p@localhost:5432/minerdash
poller:
  interval: 30s
countdown:
  name: bonus
  duration: 2h
logging:
  format: json
`)
	t.Setenv("MINERDASH_LOG_LEVEL", "debug")
	t.Setenv("MINERDASH_REDIS_DB", "not-a-number")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("config path = %q", cfg.ConfigPath)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" || len(cfg.Server.CORSOrigins) != 1 {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Backend.BaseURL != "https://api.example.com/v1" || cfg.Backend.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.DatabaseDSN() != "postgres://u:p@localhost:5432/minerdash" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Poller.Interval != 30*time.Second || cfg.Countdown.Name != "bonus" || cfg.Countdown.Duration != 2*time.Hour {
		t.Fatalf("unexpected poller/countdown config: %+v %+v", cfg.Poller, cfg.Countdown)
	}
	if cfg.Countdown.CheckpointTicks != 60 {
		t.Fatalf("expected default checkpoint ticks to survive partial file, got %d", cfg.Countdown.CheckpointTicks)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Storage.Redis.DB != 0 {
		t.Fatalf("expected invalid redis db override ignored, got %d", cfg.Storage.Redis.DB)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"unknown driver":   func(c *AppConfig) { c.Storage.Driver = "mysql" },
		"postgres no dsn":  func(c *AppConfig) { c.Storage.Driver = DriverPostgres },
		"redis no address": func(c *AppConfig) { c.Storage.Driver = DriverRedis },
		"relative url":     func(c *AppConfig) { c.Backend.BaseURL = "/api" },
		"ftp url":          func(c *AppConfig) { c.Backend.BaseURL = "ftp://example.com" },
		"empty addr":       func(c *AppConfig) { c.Server.Addr = " " },
		"short countdown":  func(c *AppConfig) { c.Countdown.Duration = time.Millisecond },
		"negative poll":    func(c *AppConfig) { c.Poller.Interval = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if errValidate := cfg.Validate(); errValidate == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestResolveConfigPathOrder(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/minerdash/config.yaml")
	if got := ResolveConfigPath(" ./local.yaml "); got != "local.yaml" {
		t.Fatalf("explicit path = %q", got)
	}
	if got := ResolveConfigPath(""); got != "/etc/minerdash/config.yaml" {
		t.Fatalf("env path = %q", got)
	}
	t.Setenv(EnvConfigPath, "")
	t.Setenv("MINERDASH_DATA_DIR", "/var/lib/minerdash")
	if got := ResolveConfigPath(""); got != "/var/lib/minerdash/config.yaml" {
		t.Fatalf("data dir path = %q", got)
	}
}
