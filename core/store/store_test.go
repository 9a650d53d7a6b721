package store

import (
	"context"
	"path/filepath"
	"testing"

	"aegis-irm/config"
	"aegis-irm/core/utils"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "store.db"),
	}
	logger := utils.NewNopLogger()
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}
