package settings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// PollInterval returns the configured dashboard poll interval, never below the minimum.
func PollInterval() time.Duration {
	seconds := IntValue(PollIntervalSecondsKey, DefaultPollIntervalSeconds)
	if seconds < MinPollIntervalSeconds {
		seconds = MinPollIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// CountdownDefault returns the seed duration for persisted countdowns.
func CountdownDefault() time.Duration {
	seconds := IntValue(CountdownDefaultSecondsKey, DefaultCountdownSeconds)
	if seconds <= 0 {
		seconds = DefaultCountdownSeconds
	}
	return time.Duration(seconds) * time.Second
}

// CountdownCheckpointTicks returns how many ticks pass between checkpoints.
func CountdownCheckpointTicks() int {
	ticks := IntValue(CountdownCheckpointTicksKey, DefaultCountdownCheckpointTicks)
	if ticks <= 0 {
		return DefaultCountdownCheckpointTicks
	}
	return ticks
}

// IntValue reads key from the snapshot as an integer, returning fallback when unset or unparsable.
func IntValue(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	if parsed, okParse := ParseInt(raw); okParse {
		return parsed
	}
	return fallback
}

// ParseInt accepts 15, 15.0, "15" and {"value": 15}.
func ParseInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(math.Round(f)), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return parsed, true
		}
		return 0, false
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return ParseInt(wrapper.Value)
	}
	return 0, false
}
