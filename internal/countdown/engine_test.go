package countdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashvest/minerdash/internal/accrual"
	"github.com/stretchr/testify/require"
)

type snapshotList struct {
	mu    sync.Mutex
	items []accrual.Snapshot
}

func (l *snapshotList) set(items ...accrual.Snapshot) {
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
}

func (l *snapshotList) get() []accrual.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]accrual.Snapshot(nil), l.items...)
}

func activeSnapshot(id string, next *time.Time) accrual.Snapshot {
	return accrual.Snapshot{ID: id, Status: accrual.StatusActive, NextEarningTime: next}
}

func TestEngineTickPhases(t *testing.T) {
	future := baseTime.Add(90 * time.Minute)
	past := baseTime.Add(-time.Second)
	list := &snapshotList{}
	list.set(
		activeSnapshot("a", &future),
		activeSnapshot("b", &past),
		activeSnapshot("c", nil),
		accrual.Snapshot{ID: "d", Status: accrual.StatusCompleted},
	)

	engine := NewEngine(list.get)
	engine.Tick(baseTime)
	entries := engine.Entries()
	require.Len(t, entries, 4)

	require.Equal(t, PhaseCounting, entries["a"].Phase)
	require.Equal(t, "1h 30m 0s", entries["a"].Label)
	require.True(t, entries["a"].Target.Equal(future))

	require.Equal(t, PhaseOverdue, entries["b"].Phase)
	require.Equal(t, ReadyLabel, entries["b"].Label)

	require.Equal(t, PhaseIdle, entries["c"].Phase)
	require.Nil(t, entries["c"].Target)
	require.Equal(t, PhaseIdle, entries["d"].Phase)
}

func TestEngineFollowsLatestSource(t *testing.T) {
	first := baseTime.Add(10 * time.Second)
	list := &snapshotList{}
	list.set(activeSnapshot("a", &first))
	engine := NewEngine(list.get)

	engine.Tick(baseTime.Add(11 * time.Second))
	entry, ok := engine.Entry("a")
	require.True(t, ok)
	require.Equal(t, PhaseOverdue, entry.Phase)

	next := baseTime.Add(time.Hour + 10*time.Second)
	list.set(activeSnapshot("a", &next), activeSnapshot("z", nil))
	engine.Tick(baseTime.Add(12 * time.Second))
	entry, _ = engine.Entry("a")
	require.Equal(t, PhaseCounting, entry.Phase)
	require.Equal(t, "59m 58s", entry.Label)

	list.set(activeSnapshot("z", nil))
	engine.Tick(baseTime.Add(13 * time.Second))
	_, ok = engine.Entry("a")
	require.False(t, ok)
}

func TestEngineEntriesAreCopies(t *testing.T) {
	target := baseTime.Add(time.Minute)
	list := &snapshotList{}
	list.set(activeSnapshot("a", &target))
	engine := NewEngine(list.get)
	engine.Tick(baseTime)

	entries := engine.Entries()
	*entries["a"].Target = baseTime.Add(time.Hour)
	delete(entries, "a")

	entry, ok := engine.Entry("a")
	require.True(t, ok)
	require.True(t, entry.Target.Equal(target))
}

func TestEngineReset(t *testing.T) {
	target := baseTime.Add(time.Minute)
	list := &snapshotList{}
	list.set(activeSnapshot("a", &target))
	engine := NewEngine(list.get)
	engine.Tick(baseTime)
	engine.Reset()
	require.Empty(t, engine.Entries())
}

func TestEngineStartStopRestart(t *testing.T) {
	target := baseTime.Add(time.Hour)
	list := &snapshotList{}
	list.set(activeSnapshot("a", &target))

	var mu sync.Mutex
	now := baseTime
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	engine := NewEngine(list.get, WithClock(clock), WithInterval(5*time.Millisecond))

	engine.Start(context.Background())
	engine.Start(context.Background())
	require.True(t, engine.Running())
	require.Eventually(t, func() bool {
		entry, _ := engine.Entry("a")
		return entry.State.Minutes < 59
	}, 3*time.Second, 5*time.Millisecond)

	engine.Stop()
	require.False(t, engine.Running())
	engine.Stop()

	engine.Start(context.Background())
	require.True(t, engine.Running())
	engine.Stop()
	require.False(t, engine.Running())
}

func TestEngineStopsWithContext(t *testing.T) {
	list := &snapshotList{}
	engine := NewEngine(list.get, WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	cancel()
	require.Eventually(t, func() bool { return !engine.Running() }, time.Second, 5*time.Millisecond)

	engine.Start(context.Background())
	require.True(t, engine.Running())
	engine.Stop()
}
