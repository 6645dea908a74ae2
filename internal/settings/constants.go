package settings

// Runtime settings keys and defaults. Values live in the settings table as JSON.
const (
	// PollIntervalSecondsKey controls the dashboard poll interval in seconds.
	PollIntervalSecondsKey = "POLL_INTERVAL_SECONDS"
	// DefaultPollIntervalSeconds is the fallback poll interval.
	DefaultPollIntervalSeconds = 15
	// MinPollIntervalSeconds is the lowest accepted poll interval.
	MinPollIntervalSeconds = 5

	// CountdownDefaultSecondsKey sets the duration a persisted countdown is seeded with.
	CountdownDefaultSecondsKey = "COUNTDOWN_DEFAULT_SECONDS"
	// DefaultCountdownSeconds is 12 hours.
	DefaultCountdownSeconds = 43200

	// CountdownCheckpointTicksKey sets how many ticks pass between persisted checkpoints.
	CountdownCheckpointTicksKey = "COUNTDOWN_CHECKPOINT_TICKS"
	// DefaultCountdownCheckpointTicks writes a checkpoint once a minute.
	DefaultCountdownCheckpointTicks = 60
)
