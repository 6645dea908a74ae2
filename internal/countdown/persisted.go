package countdown

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashvest/minerdash/internal/storage"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultDuration seeds a fresh or expired persisted countdown.
	DefaultDuration = 12 * time.Hour
	// DefaultCheckpointEvery is the number of ticks between checkpoints.
	DefaultCheckpointEvery = 60

	// checkpointSkew tolerates checkpoints written by a peer whose clock runs slightly ahead.
	checkpointSkew = time.Second
)

// Checkpoint is the stored form of a persisted countdown.
type Checkpoint struct {
	RemainingSeconds int64     `json:"remaining_seconds"`
	CheckpointAt     time.Time `json:"checkpoint_at"`
}

// PersistedConfig configures a Persisted countdown.
type PersistedConfig struct {
	Name            string
	Duration        time.Duration
	CheckpointEvery int
}

// Persisted is a long-lived countdown that resumes across restarts.
//
// The remaining time lives in memory and is decremented once per tick. A checkpoint
// (remaining, wall clock) is written when the countdown is seeded and every
// CheckpointEvery ticks, so a restart loses at most that many seconds of accuracy.
// Expired, corrupt, negative or future-dated checkpoints reseed to the configured duration.
type Persisted struct {
	store storage.Store
	key   string

	seedSeconds     int64
	checkpointEvery int
	opts            options
	loop            ticker

	mu              sync.Mutex
	active          bool
	remaining       int64
	sinceCheckpoint int
}

// NewPersisted builds a countdown stored under countdown.<name>.
func NewPersisted(store storage.Store, cfg PersistedConfig, opts ...Option) *Persisted {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	duration := cfg.Duration
	if duration < time.Second {
		duration = DefaultDuration
	}
	every := cfg.CheckpointEvery
	if every <= 0 {
		every = DefaultCheckpointEvery
	}
	return &Persisted{
		store:           store,
		key:             storage.CountdownKey(cfg.Name),
		seedSeconds:     int64(duration / time.Second),
		checkpointEvery: every,
		opts:            o,
	}
}

// Key returns the storage key.
func (p *Persisted) Key() string {
	return p.key
}

// Activate loads the stored checkpoint and resumes from it, or seeds a fresh countdown.
// The in-memory countdown is always usable afterwards, even when storage fails.
func (p *Persisted) Activate(ctx context.Context, now time.Time) error {
	if p == nil {
		return errors.New("countdown: not initialized")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activateLocked(ctx, now)
}

func (p *Persisted) activateLocked(ctx context.Context, now time.Time) error {
	var cp Checkpoint
	found, errGet := p.store.Get(ctx, p.key, &cp)
	if errGet != nil && !errors.Is(errGet, storage.ErrCorrupt) {
		p.seedInMemory()
		return errGet
	}
	if errGet != nil {
		log.WithError(errGet).Warnf("countdown: discarding corrupt checkpoint (key=%s)", p.key)
		return p.seedLocked(ctx, now)
	}
	if !found {
		return p.seedLocked(ctx, now)
	}
	remaining, ok := resume(cp, now)
	if !ok {
		log.Debugf("countdown: checkpoint expired or invalid, reseeding (key=%s remaining=%d at=%s)", p.key, cp.RemainingSeconds, cp.CheckpointAt.Format(time.RFC3339))
		return p.seedLocked(ctx, now)
	}
	p.active = true
	p.remaining = remaining
	p.sinceCheckpoint = 0
	return nil
}

// resume returns the remaining seconds at now, or false when the checkpoint cannot be resumed.
func resume(cp Checkpoint, now time.Time) (int64, bool) {
	if cp.RemainingSeconds <= 0 || cp.CheckpointAt.IsZero() {
		return 0, false
	}
	if cp.CheckpointAt.After(now.Add(checkpointSkew)) {
		return 0, false
	}
	elapsed := int64(0)
	if now.After(cp.CheckpointAt) {
		elapsed = int64(now.Sub(cp.CheckpointAt) / time.Second)
	}
	remaining := cp.RemainingSeconds - elapsed
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Remaining returns the in-memory remaining seconds.
func (p *Persisted) Remaining() int64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

// Label renders the remaining time as HH:MM:SS.
func (p *Persisted) Label() string {
	return FormatClock(p.Remaining())
}

// Tick decrements the countdown by one second. Reaching zero reseeds it;
// every CheckpointEvery ticks a checkpoint is written.
func (p *Persisted) Tick(ctx context.Context, now time.Time) error {
	if p == nil {
		return errors.New("countdown: not initialized")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return p.activateLocked(ctx, now)
	}
	p.remaining--
	p.sinceCheckpoint++
	if p.remaining <= 0 {
		return p.seedLocked(ctx, now)
	}
	if p.sinceCheckpoint >= p.checkpointEvery {
		return p.checkpointLocked(ctx, now)
	}
	return nil
}

// Reset reseeds to the full duration and overwrites any stored checkpoint.
func (p *Persisted) Reset(ctx context.Context, now time.Time) error {
	if p == nil {
		return errors.New("countdown: not initialized")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seedLocked(ctx, now)
}

// ConsumeLoginReset resets the countdown if a login happened since the last call.
func (p *Persisted) ConsumeLoginReset(ctx context.Context, session *storage.Session, now time.Time) (bool, error) {
	if p == nil || session == nil {
		return false, nil
	}
	consumed, errConsume := session.ConsumeJustLoggedIn(ctx)
	if errConsume != nil || !consumed {
		return false, errConsume
	}
	return true, p.Reset(ctx, now)
}

// Flush writes a checkpoint for the current in-memory value.
func (p *Persisted) Flush(ctx context.Context, now time.Time) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return nil
	}
	return p.checkpointLocked(ctx, now)
}

// Start activates the countdown and ticks it once per interval until Stop or ctx cancellation.
func (p *Persisted) Start(ctx context.Context) error {
	if p == nil {
		return errors.New("countdown: not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if p.loop.running() {
		return nil
	}
	errActivate := p.Activate(ctx, p.opts.now())
	if errActivate != nil {
		log.WithError(errActivate).Warnf("countdown: activate failed, running without storage (key=%s)", p.key)
	}
	if p.loop.start(ctx, p.opts.interval, func() {
		if errTick := p.Tick(ctx, p.opts.now()); errTick != nil {
			log.WithError(errTick).Warnf("countdown: checkpoint failed (key=%s)", p.key)
		}
	}) {
		log.Infof("countdown: started (key=%s remaining=%s)", p.key, p.Label())
	}
	return errActivate
}

// Stop ends the tick loop and writes a final checkpoint.
func (p *Persisted) Stop(ctx context.Context) {
	if p == nil || !p.loop.stop() {
		return
	}
	if errFlush := p.Flush(ctx, p.opts.now()); errFlush != nil {
		log.WithError(errFlush).Warnf("countdown: final checkpoint failed (key=%s)", p.key)
	}
}

func (p *Persisted) seedInMemory() {
	p.active = true
	p.remaining = p.seedSeconds
	p.sinceCheckpoint = 0
}

func (p *Persisted) seedLocked(ctx context.Context, now time.Time) error {
	p.seedInMemory()
	return p.checkpointLocked(ctx, now)
}

func (p *Persisted) checkpointLocked(ctx context.Context, now time.Time) error {
	p.sinceCheckpoint = 0
	return p.store.Set(ctx, p.key, Checkpoint{
		RemainingSeconds: p.remaining,
		CheckpointAt:     now.UTC(),
	})
}
