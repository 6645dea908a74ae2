package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/hashvest/minerdash/internal/accrual"
)

// Phase is the per-purchase countdown state.
type Phase string

const (
	// PhaseIdle means the purchase has no next earning time (completed or unknown).
	PhaseIdle Phase = "idle"
	// PhaseCounting means the next earning time is in the future.
	PhaseCounting Phase = "counting"
	// PhaseOverdue means the target passed and the next poll has not yet moved it.
	PhaseOverdue Phase = "overdue"
)

// Entry is the countdown shown for one purchase.
type Entry struct {
	PurchaseID string     `json:"purchase_id"`
	Phase      Phase      `json:"phase"`
	State      State      `json:"state"`
	Label      string     `json:"label"`
	Target     *time.Time `json:"target,omitempty"`
}

// Source returns the most recently merged snapshot list.
type Source func() []accrual.Snapshot

// Engine recomputes per-purchase countdowns once per tick.
// Snapshots are re-read from Source on every tick so a poll that moves
// NextEarningTime is picked up without restarting the engine.
type Engine struct {
	source Source
	opts   options
	loop   ticker

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewEngine creates an engine reading from source.
func NewEngine(source Source, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{source: source, opts: o, entries: map[string]Entry{}}
}

// Start computes the entries once and begins ticking. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	if e == nil {
		return
	}
	e.Tick(e.opts.now())
	e.loop.start(ctx, e.opts.interval, func() { e.Tick(e.opts.now()) })
}

// Stop cancels the ticker and waits for it to exit. Entries are kept.
func (e *Engine) Stop() {
	if e == nil {
		return
	}
	e.loop.stop()
}

// Running reports whether the ticker is active.
func (e *Engine) Running() bool {
	return e != nil && e.loop.running()
}

// Tick recomputes every entry for now. Purchases missing from the source are dropped.
func (e *Engine) Tick(now time.Time) {
	if e == nil || e.source == nil {
		return
	}
	snapshots := e.source()
	next := make(map[string]Entry, len(snapshots))
	for _, s := range snapshots {
		next[s.ID] = entryFor(s, now)
	}
	e.mu.Lock()
	e.entries = next
	e.mu.Unlock()
}

// Reset drops every entry. Call it when the purchase list is replaced by a different set.
func (e *Engine) Reset() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.entries = map[string]Entry{}
	e.mu.Unlock()
}

// Entries returns a copy of the current entries keyed by purchase id.
func (e *Engine) Entries() map[string]Entry {
	if e == nil {
		return map[string]Entry{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Entry, len(e.entries))
	for id, entry := range e.entries {
		if entry.Target != nil {
			target := *entry.Target
			entry.Target = &target
		}
		out[id] = entry
	}
	return out
}

// Entry returns the countdown for one purchase.
func (e *Engine) Entry(purchaseID string) (Entry, bool) {
	entries := e.Entries()
	entry, ok := entries[purchaseID]
	return entry, ok
}

func entryFor(s accrual.Snapshot, now time.Time) Entry {
	entry := Entry{PurchaseID: s.ID, Phase: PhaseIdle}
	if s.NextEarningTime == nil || s.Status == accrual.StatusCompleted {
		return entry
	}
	target := *s.NextEarningTime
	entry.Target = &target
	entry.State = Compute(target, now)
	entry.Label = entry.State.Label()
	if entry.State.IsOverdue {
		entry.Phase = PhaseOverdue
	} else {
		entry.Phase = PhaseCounting
	}
	return entry
}
