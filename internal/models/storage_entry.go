package models

import (
	"time"

	"gorm.io/datatypes"
)

// StorageEntry stores one durable client-storage value, JSON encoded.
type StorageEntry struct {
	Key string `gorm:"type:varchar(255);primaryKey"` // Storage key, e.g. "session.token".

	Value datatypes.JSON `gorm:"type:jsonb;not null"` // JSON-encoded value.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last write timestamp.
}

// TableName overrides the default table name.
func (StorageEntry) TableName() string {
	return "client_storage"
}
