package db

import (
	"fmt"

	"github.com/hashvest/minerdash/internal/models"
	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// Migrate creates or updates the client tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(&models.StorageEntry{}, &models.Setting{}); errMigrate != nil {
		return fmt.Errorf("db: migrate %s: %w", DialectName(conn), errMigrate)
	}
	return nil
}
