package testsupport

import (
	"context"
	"testing"

	"ritualsync/internal/localstore"
	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
)

// Ritual builds a record with a title and sync status.
func Ritual(id, title string, status ritual.Status) ritual.Record {
	rec := ritual.New(id)
	rec.Set(ritual.FieldTitle, ritual.StringValue(title))
	rec.SyncStatus = status
	return rec
}

// WriteRecords replaces the local document at path.
func WriteRecords(t testing.TB, path string, records ...ritual.Record) {
	t.Helper()

	if err := localstore.New(path, logging.NewNop()).Save(context.Background(), records); err != nil {
		t.Fatalf("write records %s: %v", path, err)
	}
}

// ReadRecords loads the local document at path.
func ReadRecords(t testing.TB, path string) []ritual.Record {
	t.Helper()

	records, err := localstore.New(path, logging.NewNop()).Load(context.Background())
	if err != nil {
		t.Fatalf("read records %s: %v", path, err)
	}
	return records
}
