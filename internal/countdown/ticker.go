package countdown

import (
	"context"
	"sync"
	"time"
)

// Option customizes an Engine or a Persisted countdown.
type Option func(*options)

type options struct {
	now      func() time.Time
	interval time.Duration
}

func defaultOptions() options {
	return options{now: time.Now, interval: time.Second}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithInterval changes the tick period (one second by default).
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// ticker runs one repeating loop at a time. Start while running is a no-op,
// and Start after Stop begins a fresh loop.
type ticker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *ticker) start(ctx context.Context, interval time.Duration, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		defer func() {
			t.mu.Lock()
			if t.done == done {
				t.cancel, t.done = nil, nil
			}
			t.mu.Unlock()
			cancel()
		}()
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-tk.C:
				fn()
			}
		}
	}()
	return true
}

// stop cancels the loop and waits for it to exit. It reports whether a loop was running.
func (t *ticker) stop() bool {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (t *ticker) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
