package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestComputeOneHourUsesHourForm(t *testing.T) {
	state := Compute(baseTime.Add(time.Hour+2*time.Minute+3*time.Second), baseTime)
	require.False(t, state.IsOverdue)
	require.Equal(t, State{Hours: 1, Minutes: 2, Seconds: 3}, state)
	require.Equal(t, "1h 2m 3s", state.Label())
}

func TestComputeDayForm(t *testing.T) {
	state := Compute(baseTime.Add(50*time.Hour+15*time.Minute+9*time.Second), baseTime)
	require.Equal(t, State{Days: 2, Hours: 2, Minutes: 15, Seconds: 9}, state)
	require.Equal(t, "2d 2h 15m", state.Label())
}

func TestComputeMinuteForm(t *testing.T) {
	state := Compute(baseTime.Add(59*time.Minute+59*time.Second+900*time.Millisecond), baseTime)
	require.Equal(t, "59m 59s", state.Label())

	state = Compute(baseTime.Add(400*time.Millisecond), baseTime)
	require.False(t, state.IsOverdue)
	require.Equal(t, "0m 0s", state.Label())
}

func TestComputePastTargetIsOverdue(t *testing.T) {
	for _, target := range []time.Time{baseTime, baseTime.Add(-time.Second), baseTime.Add(-72 * time.Hour)} {
		state := Compute(target, baseTime)
		require.True(t, state.IsOverdue)
		require.Equal(t, State{IsOverdue: true}, state)
		require.Equal(t, ReadyLabel, state.Label())
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	target := baseTime.Add(3*time.Hour + 7*time.Second)
	require.Equal(t, Compute(target, baseTime), Compute(target, baseTime))
	require.Equal(t, Compute(target, baseTime).Label(), Compute(target, baseTime).Label())
}

func TestFormatClock(t *testing.T) {
	cases := map[int64]string{
		0:      "00:00:00",
		59:     "00:00:59",
		3661:   "01:01:01",
		43200:  "12:00:00",
		90061:  "25:01:01",
		360000: "100:00:00",
		-5:     "00:00:00",
	}
	for seconds, want := range cases {
		require.Equal(t, want, FormatClock(seconds), "seconds=%d", seconds)
	}
}
