package models

import (
	"encoding/json"
	"time"
)

// Setting stores a runtime-tunable configuration entry, e.g. POLL_INTERVAL_SECONDS.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
