package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hashvest/minerdash/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps values in the client_storage table (SQLite or Postgres).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a table-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		return nil
	}
	return &GormStore{db: db}
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("storage: db not initialized")
	}
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return false, errKey
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var row models.StorageEntry
	errFind := s.db.WithContext(ctx).
		Select("key", "value").
		Where("key = ?", key).
		First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if errFind != nil {
		return false, errFind
	}
	return true, decode(key, row.Value, dst)
}

// Set implements Store.
func (s *GormStore) Set(ctx context.Context, key string, value any) error {
	if s == nil || s.db == nil {
		return errors.New("storage: db not initialized")
	}
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return errKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, errEncode := encode(key, value)
	if errEncode != nil {
		return errEncode
	}

	now := time.Now().UTC()
	row := models.StorageEntry{
		Key:       key,
		Value:     datatypes.JSON(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errors.New("storage: db not initialized")
	}
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return errKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.StorageEntry{}).Error
}
