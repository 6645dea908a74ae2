package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hashvest/minerdash/internal/models"
	"gorm.io/gorm"
)

// RefreshDBConfigSnapshot reloads the settings table into the in-memory snapshot and reports
// whether the table changed since the previous load. Until the first call every accessor
// returns its default. Rows with a blank key or a null value are ignored.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) (bool, error) {
	if db == nil {
		return false, errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Find(&rows).Error; errFind != nil {
		return false, errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	var newest time.Time
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		value := bytes.TrimSpace(row.Value)
		if key == "" || len(value) == 0 || bytes.Equal(value, []byte("null")) {
			continue
		}
		values[key] = value
		if at := row.UpdatedAt.UTC(); at.After(newest) {
			newest = at
		}
	}

	prev := current.Load()
	changed := !prev.updatedAt.Equal(newest) || len(prev.values) != len(values)
	StoreDBConfig(newest, values)
	return changed, nil
}
