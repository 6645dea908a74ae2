package db

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesClientTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"client_storage", "settings"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"key", "value", "created_at", "updated_at"} {
		if !conn.Migrator().HasColumn("client_storage", column) {
			t.Fatalf("client_storage missing column %s", column)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate pass %d: %v", i, errMigrate)
		}
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/minerdash": DialectPostgres,
		"host=localhost dbname=minerdash":         DialectPostgres,
		"file:data/minerdash.db":                  DialectSQLite,
		"sqlite://data/minerdash.db":              DialectSQLite,
		"minerdash.db":                            DialectSQLite,
	}
	for dsn, want := range cases {
		got, errDetect := detectDialectFromDSN(dsn)
		if errDetect != nil {
			t.Fatalf("detect %q: %v", dsn, errDetect)
		}
		if got != want {
			t.Fatalf("detect %q = %q, want %q", dsn, got, want)
		}
	}
	if _, errDetect := detectDialectFromDSN("mysql://localhost/db"); errDetect == nil {
		t.Fatalf("expected error for mysql dsn")
	}
}

func TestOpenSQLiteCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "minerdash.db")
	conn, errOpen := Open(path, Options{})
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if DialectName(conn) != DialectSQLite {
		t.Fatalf("dialect = %q", DialectName(conn))
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	sqlDB, _ := conn.DB()
	_ = sqlDB.Close()
}

func TestSQLitePathFromDSN(t *testing.T) {
	cases := map[string]string{
		"file:data/x.db?_busy_timeout=5000": "data/x.db",
		"data/x.db":                         "data/x.db",
		":memory:":                          "",
		"file::memory:?cache=shared":        "",
	}
	for dsn, want := range cases {
		if got := sqlitePathFromDSN(dsn); got != want {
			t.Fatalf("sqlitePathFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}
