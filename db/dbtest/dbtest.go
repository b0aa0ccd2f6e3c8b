// Package dbtest opens a migrated SQLite database for tests.
package dbtest

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"salvage-market/config"
	"salvage-market/db"
)

func Open(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.db")
	conn, err := db.Open(ctx, "sqlite3", config.SQLiteDSN(path))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(ctx, conn, "sqlite3", slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return conn
}
