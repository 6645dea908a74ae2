// Package config loads the YAML configuration file and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashvest/minerdash/internal/util"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath     = "MINERDASH_CONFIG"
	defaultConfigFile = "config.yaml"
	defaultSQLiteFile = "minerdash.db"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// AppConfig is the full process configuration.
type AppConfig struct {
	// ConfigPath is the file the configuration was read from; empty when defaults were used.
	ConfigPath string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Storage   StorageConfig   `yaml:"storage"`
	Poller    PollerConfig    `yaml:"poller"`
	Countdown CountdownConfig `yaml:"countdown"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	Debug              bool          `yaml:"debug"`
	CORSOrigins        []string      `yaml:"cors-origins"`
	WriteRatePerSecond float64       `yaml:"write-rate-per-second"`
	WriteBurst         int           `yaml:"write-burst"`
	ShutdownTimeout    time.Duration `yaml:"shutdown-timeout"`
}

// BackendConfig configures the investment backend client.
type BackendConfig struct {
	BaseURL        string        `yaml:"base-url"`
	RequestTimeout time.Duration `yaml:"request-timeout"`
	RatePerSecond  float64       `yaml:"rate-per-second"`
	Burst          int           `yaml:"burst"`
}

// StorageConfig selects the durable client storage.
type StorageConfig struct {
	Driver   string      `yaml:"driver"`
	DSN      string      `yaml:"dsn"`
	TimeZone string      `yaml:"time-zone"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis storage driver.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PollerConfig configures the polling loop. A zero Interval defers to the settings table.
type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch-timeout"`
}

// CountdownConfig configures the persisted countdown.
type CountdownConfig struct {
	Name            string        `yaml:"name"`
	Duration        time.Duration `yaml:"duration"`
	CheckpointTicks int           `yaml:"checkpoint-ticks"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8320",
			WriteRatePerSecond: 2,
			WriteBurst:         5,
			ShutdownTimeout:    10 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000/api",
			RequestTimeout: 15 * time.Second,
			RatePerSecond:  5,
			Burst:          5,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Redis:  RedisConfig{Prefix: "minerdash:"},
		},
		Poller: PollerConfig{
			FetchTimeout: 20 * time.Second,
		},
		Countdown: CountdownConfig{
			Name:            "promo",
			Duration:        12 * time.Hour,
			CheckpointTicks: 60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// ResolveConfigPath picks the config file: the explicit path, then MINERDASH_CONFIG,
// then config.yaml in the data directory or the working directory.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return filepath.Clean(trimmed)
	}
	if envPath := strings.TrimSpace(os.Getenv(EnvConfigPath)); envPath != "" {
		return filepath.Clean(envPath)
	}
	if dataDir := util.DataDir(); dataDir != "" {
		return filepath.Join(dataDir, defaultConfigFile)
	}
	return defaultConfigFile
}

// Load reads the config file, applies environment overrides and validates the result.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (AppConfig, error) {
	explicit := strings.TrimSpace(path) != "" || strings.TrimSpace(os.Getenv(EnvConfigPath)) != ""
	resolved := ResolveConfigPath(path)

	cfg := Default()
	data, errRead := os.ReadFile(resolved)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AppConfig{}, fmt.Errorf("config: parse %s: %w", resolved, errUnmarshal)
		}
		cfg.ConfigPath = resolved
	case errors.Is(errRead, os.ErrNotExist) && !explicit:
		log.Debugf("config: %s not found, using defaults", resolved)
	default:
		return AppConfig{}, fmt.Errorf("config: read %s: %w", resolved, errRead)
	}

	applyEnvOverrides(&cfg)
	if errValidate := cfg.Validate(); errValidate != nil {
		return AppConfig{}, errValidate
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets and deployment specifics stay out of the file.
func applyEnvOverrides(cfg *AppConfig) {
	cfg.Server.Addr = envOrDefault("MINERDASH_ADDR", cfg.Server.Addr)
	cfg.Backend.BaseURL = envOrDefault("MINERDASH_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Storage.Driver = envOrDefault("MINERDASH_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = envOrDefault("MINERDASH_DATABASE_DSN", cfg.Storage.DSN)
	cfg.Storage.Redis.Address = envOrDefault("MINERDASH_REDIS_ADDR", cfg.Storage.Redis.Address)
	cfg.Storage.Redis.Password = envOrDefault("MINERDASH_REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Redis.DB = envIntOrDefault("MINERDASH_REDIS_DB", cfg.Storage.Redis.DB)
	cfg.Logging.Level = envOrDefault("MINERDASH_LOG_LEVEL", cfg.Logging.Level)
}

// Validate normalises and checks the configuration.
func (c *AppConfig) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverSQLite
	case DriverSQLite, DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverPostgres && strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage.dsn is required for postgres")
	}
	if c.Storage.Driver == DriverRedis && strings.TrimSpace(c.Storage.Redis.Address) == "" {
		return errors.New("config: storage.redis.address is required for redis")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	parsed, errParse := url.Parse(baseURL)
	if baseURL == "" || errParse != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("config: backend.base-url must be an absolute http(s) url, got %q", c.Backend.BaseURL)
	}
	c.Backend.BaseURL = baseURL

	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server.addr is required")
	}
	if c.Poller.Interval < 0 || c.Poller.FetchTimeout < 0 || c.Backend.RequestTimeout < 0 {
		return errors.New("config: durations must not be negative")
	}
	if c.Countdown.Duration != 0 && c.Countdown.Duration < time.Second {
		return fmt.Errorf("config: countdown.duration must be at least 1s, got %s", c.Countdown.Duration)
	}
	return nil
}

// DatabaseDSN returns the DSN for table-backed drivers, defaulting SQLite to the data directory.
func (c AppConfig) DatabaseDSN() string {
	if dsn := strings.TrimSpace(c.Storage.DSN); dsn != "" {
		return dsn
	}
	if c.Storage.Driver != DriverSQLite && c.Storage.Driver != "" {
		return ""
	}
	if dataDir := util.DataDir(); dataDir != "" {
		return filepath.Join(dataDir, defaultSQLiteFile)
	}
	return filepath.Join("data", defaultSQLiteFile)
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, errParse := strconv.Atoi(value)
	if errParse != nil {
		log.Warnf("config: ignoring %s=%q: not an integer", key, value)
		return fallback
	}
	return parsed
}
