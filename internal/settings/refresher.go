package settings

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultRefreshInterval = time.Minute

// Refresher periodically reloads the settings snapshot so edits to the settings
// table take effect without a restart.
type Refresher struct {
	db       *gorm.DB
	interval time.Duration
}

// NewRefresher returns nil when db is nil.
func NewRefresher(db *gorm.DB, interval time.Duration) *Refresher {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Refresher{db: db, interval: interval}
}

// Start launches the refresh loop in a background goroutine.
func (r *Refresher) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go r.run(ctx)
	log.Infof("settings refresher started (interval=%s)", r.interval)
}

func (r *Refresher) run(ctx context.Context) {
	for {
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
		changed, errRefresh := RefreshDBConfigSnapshot(ctx, r.db)
		if errRefresh != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(errRefresh).Warn("settings: refresh snapshot failed")
			continue
		}
		if changed {
			log.Infof("settings: snapshot updated (updated_at=%s poll_interval=%s)", DBConfigUpdatedAt().Format(time.RFC3339), PollInterval())
		}
	}
}
