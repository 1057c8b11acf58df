package testsupport

import (
	"context"
	"testing"

	"ritualsync/internal/config"
	"ritualsync/internal/external"
	"ritualsync/internal/external/sqlitestore"
)

// MustOpenSQLiteStore opens the config's staging database and registers
// cleanup.
func MustOpenSQLiteStore(t testing.TB, cfg *config.Config) *sqlitestore.Store {
	t.Helper()

	store, err := sqlitestore.Open(cfg.External.SQLitePath)
	if err != nil {
		t.Fatalf("sqlitestore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRows creates rows in store.
func SeedRows(t testing.TB, store external.Store, rows ...external.Fields) {
	t.Helper()

	for _, chunk := range external.Chunk(rows, external.MaxBatchSize) {
		if err := store.BatchCreate(context.Background(), chunk); err != nil {
			t.Fatalf("seed rows: %v", err)
		}
	}
}
