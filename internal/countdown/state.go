// Package countdown turns target timestamps into display countdowns and keeps a
// long-lived countdown that survives restarts by checkpointing to storage.
package countdown

import (
	"fmt"
	"time"
)

// ReadyLabel replaces the countdown once the target has passed and the next poll is pending.
const ReadyLabel = "Earning ready, refreshing..."

// State is a duration split into display units.
type State struct {
	Days      int  `json:"days"`
	Hours     int  `json:"hours"`
	Minutes   int  `json:"minutes"`
	Seconds   int  `json:"seconds"`
	IsOverdue bool `json:"is_overdue"`
}

// Compute splits target-now into whole units, truncating sub-second remainders.
// A target at or before now is overdue with every unit zero.
func Compute(target, now time.Time) State {
	diff := target.Sub(now)
	if diff <= 0 {
		return State{IsOverdue: true}
	}
	total := int64(diff / time.Second)
	return State{
		Days:    int(total / 86400),
		Hours:   int(total % 86400 / 3600),
		Minutes: int(total % 3600 / 60),
		Seconds: int(total % 60),
	}
}

// Label renders the state: "Xd Yh Zm" with days, "Xh Ym Zs" with hours, otherwise "Xm Ys".
func (s State) Label() string {
	switch {
	case s.IsOverdue:
		return ReadyLabel
	case s.Days > 0:
		return fmt.Sprintf("%dd %dh %dm", s.Days, s.Hours, s.Minutes)
	case s.Hours > 0:
		return fmt.Sprintf("%dh %dm %ds", s.Hours, s.Minutes, s.Seconds)
	default:
		return fmt.Sprintf("%dm %ds", s.Minutes, s.Seconds)
	}
}

// FormatClock renders seconds as HH:MM:SS. Hours are not capped at 24.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
