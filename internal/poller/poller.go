// Package poller keeps the purchase list and earnings summary fresh.
//
// One cycle fetches purchases and the summary concurrently and merges both results
// once they settle. The automatic loop awaits a cycle, then sleeps the interval, so
// automatic cycles never overlap; a manual Refresh shares the same in-flight guard.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashvest/minerdash/internal/accrual"
	"github.com/hashvest/minerdash/internal/errs"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultFetchTimeout = 20 * time.Second
)

var (
	// ErrBusy rejects a manual refresh while another fetch is in flight.
	ErrBusy = errors.New("poller: fetch already in flight")
	// ErrDiscarded reports a fetch whose result was dropped because the poller stopped meanwhile.
	ErrDiscarded = errors.New("poller: result discarded after stop")
)

// Fetcher is the backend surface the poller needs.
type Fetcher interface {
	ListPurchases(ctx context.Context) ([]accrual.RawPurchase, error)
	EarningsSummary(ctx context.Context) (accrual.Summary, error)
}

// View is the merged state rendered by the dashboard.
type View struct {
	Purchases           []accrual.Snapshot `json:"purchases"`
	Summary             accrual.Summary    `json:"summary"`
	Totals              accrual.Totals     `json:"totals"`
	Loading             bool               `json:"loading"`
	Refreshing          bool               `json:"refreshing"`
	Error               string             `json:"error,omitempty"`
	Unauthorized        bool               `json:"unauthorized,omitempty"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	LastSuccessAt       *time.Time         `json:"last_success_at,omitempty"`
	LastAttemptAt       *time.Time         `json:"last_attempt_at,omitempty"`
}

// Options configures a Poller.
type Options struct {
	// Interval returns the sleep between automatic cycles; it is re-read every cycle.
	Interval     func() time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
	// OnUpdate runs after every applied merge, outside the poller's lock.
	OnUpdate func(View)
}

// Poller owns the polling loop and the last merged View.
type Poller struct {
	fetcher Fetcher
	opts    Options

	inFlight atomic.Bool
	epoch    atomic.Uint64

	mu        sync.RWMutex
	view      View
	lastError error

	loopMu sync.Mutex
	cancel context.CancelFunc
}

// New constructs a poller. The view starts empty with an empty summary.
func New(fetcher Fetcher, opts Options) *Poller {
	if fetcher == nil {
		return nil
	}
	if opts.Interval == nil {
		opts.Interval = func() time.Duration { return defaultPollInterval }
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		fetcher: fetcher,
		opts:    opts,
		view:    emptyView(),
	}
}

func emptyView() View {
	return View{
		Purchases: []accrual.Snapshot{},
		Summary:   accrual.EmptySummary(),
		Totals:    accrual.ComputeTotals(nil),
	}
}

// Start performs one blocking fetch with Loading set, then launches the background loop.
// Calling Start while running is a no-op; Start after Stop begins a fresh loop.
func (p *Poller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.setFlags(func(v *View) { v.Loading = true })
	if p.inFlight.CompareAndSwap(false, true) {
		_ = p.cycle(loopCtx, p.epoch.Load())
		p.inFlight.Store(false)
	}
	p.setFlags(func(v *View) { v.Loading = false })

	go p.run(loopCtx)
	log.Infof("poller: started (interval=%s)", p.interval())
}

// Stop cancels the loop without waiting for a fetch in flight. That fetch is allowed
// to finish, but its result is not applied.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.epoch.Add(1)

	p.loopMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.setFlags(func(v *View) {
		v.Loading = false
		v.Refreshing = false
	})
	log.Info("poller: stopped")
}

// Reset drops the merged view, banner and failure history so the next session starts empty.
// A fetch in flight is allowed to finish but its result is not applied. A running loop keeps
// its schedule.
func (p *Poller) Reset() {
	if p == nil {
		return
	}
	p.epoch.Add(1)
	p.mu.Lock()
	p.view = emptyView()
	p.lastError = nil
	p.mu.Unlock()
}

// Running reports whether the background loop is active.
func (p *Poller) Running() bool {
	if p == nil {
		return false
	}
	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	return p.cancel != nil
}

// Refresh runs one cycle now with Refreshing set. It does not touch the automatic schedule.
// The returned error is the purchase fetch error, if any.
func (p *Poller) Refresh(ctx context.Context) error {
	if p == nil {
		return errors.New("poller: not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer p.inFlight.Store(false)

	p.setFlags(func(v *View) { v.Refreshing = true })
	defer p.setFlags(func(v *View) { v.Refreshing = false })
	return p.cycle(ctx, p.epoch.Load())
}

// Busy reports whether a fetch is in flight.
func (p *Poller) Busy() bool {
	return p != nil && p.inFlight.Load()
}

// View returns a copy of the current view.
func (p *Poller) View() View {
	if p == nil {
		return View{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyView(p.view)
}

// Snapshots returns a copy of the most recently merged purchase list.
func (p *Poller) Snapshots() []accrual.Snapshot {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]accrual.Snapshot(nil), p.view.Purchases...)
}

// LastError returns the error behind the current banner, or nil.
func (p *Poller) LastError() error {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastError
}

// DismissError hides the error banner. The failure counter is kept.
func (p *Poller) DismissError() {
	p.setFlags(func(v *View) {
		v.Error = ""
		v.Unauthorized = false
	})
	p.mu.Lock()
	p.lastError = nil
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context) {
	for {
		timer := time.NewTimer(p.interval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		// A manual refresh in flight covers this tick.
		if !p.inFlight.CompareAndSwap(false, true) {
			continue
		}
		_ = p.cycle(ctx, p.epoch.Load())
		p.inFlight.Store(false)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Poller) interval() time.Duration {
	if d := p.opts.Interval(); d > 0 {
		return d
	}
	return defaultPollInterval
}

type fetchResult struct {
	purchases    []accrual.RawPurchase
	purchasesErr error
	summary      accrual.Summary
	summaryErr   error
}

// cycle fetches both endpoints concurrently and merges once both settle.
func (p *Poller) cycle(ctx context.Context, epoch uint64) error {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FetchTimeout)
	defer cancel()

	var res fetchResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.purchases, res.purchasesErr = p.fetcher.ListPurchases(fetchCtx)
	}()
	go func() {
		defer wg.Done()
		res.summary, res.summaryErr = p.fetcher.EarningsSummary(fetchCtx)
	}()
	wg.Wait()

	if p.epoch.Load() != epoch {
		log.Debug("poller: discarding result after stop")
		return ErrDiscarded
	}
	view, applied := p.merge(res, epoch)
	if !applied {
		return ErrDiscarded
	}
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(view)
	}
	return res.purchasesErr
}

// merge applies res: a successful purchase fetch replaces the whole list, a failed one keeps
// the last good list and raises the banner. A failed summary degrades to the empty summary.
func (p *Poller) merge(res fetchResult, epoch uint64) (View, bool) {
	now := p.opts.Now().UTC()

	var snapshots []accrual.Snapshot
	if res.purchasesErr == nil {
		var recordErrs []error
		snapshots, recordErrs = accrual.ReadAll(res.purchases, now)
		for _, errRecord := range recordErrs {
			log.WithError(errRecord).Warn("poller: purchase record degraded")
		}
	} else {
		log.WithError(res.purchasesErr).Warn("poller: fetch purchases failed")
	}
	summary := res.summary
	if res.summaryErr != nil {
		log.WithError(res.summaryErr).Warn("poller: fetch earnings summary failed")
		summary = accrual.EmptySummary()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch.Load() != epoch {
		return View{}, false
	}
	v := &p.view
	v.LastAttemptAt = &now
	if res.purchasesErr == nil {
		v.Purchases = snapshots
		v.LastSuccessAt = &now
		v.ConsecutiveFailures = 0
		v.Error = ""
		v.Unauthorized = false
		p.lastError = nil
	} else {
		v.ConsecutiveFailures++
		v.Error = bannerMessage(res.purchasesErr)
		v.Unauthorized = errors.Is(res.purchasesErr, errs.ErrUnauthorized) ||
			errors.Is(res.purchasesErr, errs.ErrNotLoggedIn) ||
			errors.Is(res.purchasesErr, errs.ErrSessionExpired)
		p.lastError = res.purchasesErr
	}
	v.Summary = summary
	v.Totals = accrual.ComputeTotals(v.Purchases)
	return copyView(*v), true
}

func (p *Poller) setFlags(fn func(v *View)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	fn(&p.view)
	p.mu.Unlock()
}

func bannerMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotLoggedIn), errors.Is(err, errs.ErrSessionExpired), errors.Is(err, errs.ErrUnauthorized):
		return "Your session has ended. Please log in again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to respond. Retrying shortly."
	default:
		return fmt.Sprintf("Could not refresh your purchases: %v", err)
	}
}

func copyView(v View) View {
	out := v
	out.Purchases = append([]accrual.Snapshot{}, v.Purchases...)
	out.Summary.Upcoming = append([]accrual.Maturity{}, v.Summary.Upcoming...)
	if v.LastSuccessAt != nil {
		t := *v.LastSuccessAt
		out.LastSuccessAt = &t
	}
	if v.LastAttemptAt != nil {
		t := *v.LastAttemptAt
		out.LastAttemptAt = &t
	}
	return out
}
