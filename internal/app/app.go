package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashvest/minerdash/internal/backend"
	"github.com/hashvest/minerdash/internal/config"
	"github.com/hashvest/minerdash/internal/countdown"
	"github.com/hashvest/minerdash/internal/db"
	relayhttp "github.com/hashvest/minerdash/internal/http"
	"github.com/hashvest/minerdash/internal/http/api/front"
	"github.com/hashvest/minerdash/internal/poller"
	"github.com/hashvest/minerdash/internal/session"
	"github.com/hashvest/minerdash/internal/settings"
	"github.com/hashvest/minerdash/internal/storage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations. Non-table drivers have nothing to migrate.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	if !usesDatabase(cfg) {
		log.Infof("migrate: storage driver %s has no tables", cfg.Storage.Driver)
		return nil
	}
	conn, err := db.Open(cfg.DatabaseDSN(), db.Options{TimeZone: cfg.Storage.TimeZone})
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// Components are the long-lived parts of a running client, exposed for wiring and tests.
type Components struct {
	DB       *gorm.DB
	Store    storage.Store
	Session  *storage.Session
	Client   *backend.Client
	Sessions *session.Manager
	Poller   *poller.Poller
	Engine   *countdown.Engine
	Promo    *countdown.Persisted

	ctx     context.Context
	closers []func()
}

// Build opens storage and constructs every component without starting any loop.
func Build(ctx context.Context, cfg config.AppConfig) (*Components, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Components{ctx: ctx}

	store, errStore := c.openStore(ctx, cfg)
	if errStore != nil {
		c.Close()
		return nil, errStore
	}
	c.Store = store
	c.Session = storage.NewSession(store)

	client, errClient := backend.NewClient(backend.Options{
		BaseURL:        cfg.Backend.BaseURL,
		RequestTimeout: cfg.Backend.RequestTimeout,
		RatePerSecond:  cfg.Backend.RatePerSecond,
		Burst:          cfg.Backend.Burst,
	}, backend.TokenFunc(func(ctx context.Context) (string, error) {
		return c.Sessions.Token(ctx)
	}))
	if errClient != nil {
		c.Close()
		return nil, errClient
	}
	c.Client = client
	c.Sessions = session.NewManager(client, c.Session)

	interval := settings.PollInterval
	if fixed := cfg.Poller.Interval; fixed > 0 {
		interval = func() time.Duration { return fixed }
	}
	c.Poller = poller.New(client, poller.Options{
		Interval:     interval,
		FetchTimeout: cfg.Poller.FetchTimeout,
		OnUpdate:     poller.DeficitLogger(),
	})
	c.Engine = countdown.NewEngine(c.Poller.Snapshots)

	duration := cfg.Countdown.Duration
	if duration <= 0 {
		duration = settings.CountdownDefault()
	}
	checkpointTicks := cfg.Countdown.CheckpointTicks
	if checkpointTicks <= 0 {
		checkpointTicks = settings.CountdownCheckpointTicks()
	}
	c.Promo = countdown.NewPersisted(store, countdown.PersistedConfig{
		Name:            cfg.Countdown.Name,
		Duration:        duration,
		CheckpointEvery: checkpointTicks,
	})
	return c, nil
}

func (c *Components) openStore(ctx context.Context, cfg config.AppConfig) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("storage: using in-memory storage, session and countdown are lost on exit")
		return storage.NewMemoryStore(), nil
	case config.DriverRedis:
		redisStore, errRedis := storage.NewRedisStore(ctx, storage.RedisOptions{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if errRedis != nil {
			return nil, errRedis
		}
		c.closers = append(c.closers, func() { _ = redisStore.Close() })
		return redisStore, nil
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN(), db.Options{TimeZone: cfg.Storage.TimeZone})
	if errOpen != nil {
		return nil, errOpen
	}
	c.closers = append(c.closers, func() { closeDB(conn) })
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return nil, errMigrate
	}
	if _, errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings: initial snapshot failed, using defaults")
	}
	c.DB = conn
	return storage.NewGormStore(conn), nil
}

// Start activates the persisted countdown, the per-purchase engine and, when a session is
// stored, the poller.
func (c *Components) Start(ctx context.Context) {
	if errStart := c.Promo.Start(ctx); errStart != nil {
		log.WithError(errStart).Warn("countdown: started without stored checkpoint")
	}
	// A login that happened before the last exit resets the countdown once.
	if _, errConsume := c.Promo.ConsumeLoginReset(ctx, c.Session, time.Now()); errConsume != nil {
		log.WithError(errConsume).Warn("countdown: login reset failed")
	}
	c.Engine.Start(ctx)
	if c.Sessions.LoggedIn(ctx) {
		c.Poller.Start(ctx)
	}
}

// Stop ends every loop and writes the final countdown checkpoint.
func (c *Components) Stop(ctx context.Context) {
	c.Poller.Stop()
	c.Engine.Stop()
	c.Promo.Stop(ctx)
}

// Close releases storage handles.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// AfterLogin resets the countdown and brings the dashboard up to date with the new session.
func (c *Components) AfterLogin(ctx context.Context) {
	if _, errConsume := c.Promo.ConsumeLoginReset(ctx, c.Session, time.Now()); errConsume != nil {
		log.WithError(errConsume).Warn("countdown: login reset failed")
	}
	c.Poller.Reset()
	c.Engine.Reset()
	if !c.Poller.Running() {
		go c.Poller.Start(c.ctx)
		return
	}
	go func() {
		if errRefresh := c.Poller.Refresh(context.WithoutCancel(ctx)); errRefresh != nil && !errors.Is(errRefresh, poller.ErrBusy) {
			log.WithError(errRefresh).Warn("poller: refresh after login failed")
		}
	}()
}

// sessionService stops polling on logout and forgets the signed-out user's purchases.
type sessionService struct {
	*session.Manager
	poller  *poller.Poller
	entries *countdown.Engine
}

func (s sessionService) Logout(ctx context.Context) error {
	s.poller.Stop()
	s.poller.Reset()
	s.entries.Reset()
	return s.Manager.Logout(ctx)
}

// Router builds the gin engine with every client route registered.
func (c *Components) Router(cfg config.AppConfig) *gin.Engine {
	engine := relayhttp.NewEngine(relayhttp.EngineOptions{
		Debug:       cfg.Server.Debug,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	deps := front.Deps{
		DB:            c.DB,
		StorageDriver: cfg.Storage.Driver,
		Loop:          c.Poller,
		Sessions:      sessionService{Manager: c.Sessions, poller: c.Poller, entries: c.Engine},
		Dashboard:     c.Poller,
		Entries:       c.Engine,
		Promo:         c.Promo,
		Purchases:     c.Client,
		AfterLogin:    c.AfterLogin,
	}
	if limiter := relayhttp.NewClientLimiter(cfg.Server.WriteRatePerSecond, cfg.Server.WriteBurst); limiter != nil {
		deps.WriteLimit = limiter.Middleware()
	}
	front.RegisterFrontRoutes(engine, deps)
	return engine
}

// RunServer boots the client and serves the local API until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	components, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	if components.DB != nil {
		settings.NewRefresher(components.DB, time.Minute).Start(ctx)
	}
	components.Start(ctx)
	defer components.Stop(context.WithoutCancel(ctx))

	log.Infof("starting minerdash with config=%s backend=%s storage=%s", configLabel(cfg), cfg.Backend.BaseURL, cfg.Storage.Driver)
	if errServe := relayhttp.Serve(ctx, cfg.Server.Addr, components.Router(cfg), cfg.Server.ShutdownTimeout); errServe != nil {
		return fmt.Errorf("serve: %w", errServe)
	}
	return nil
}

func usesDatabase(cfg config.AppConfig) bool {
	return cfg.Storage.Driver == config.DriverSQLite || cfg.Storage.Driver == config.DriverPostgres || cfg.Storage.Driver == ""
}

func configLabel(cfg config.AppConfig) string {
	if cfg.ConfigPath == "" {
		return "(defaults)"
	}
	return cfg.ConfigPath
}

func closeDB(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}
