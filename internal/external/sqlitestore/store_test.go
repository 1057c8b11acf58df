package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"ritualsync/internal/external"
	"ritualsync/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "staging", "staging.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateReadUpdate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rows := make([]external.Fields, 0, 25)
	for i := 0; i < 25; i++ {
		status := "REVIEW"
		if i%2 == 0 {
			status = "PUBLISHED"
		}
		rows = append(rows, external.Fields{"id": fmt.Sprint(i), "Sync Status": status, "Love Types": []any{"CARE"}})
	}
	if err := store.BatchCreate(ctx, rows); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil || count != 25 {
		t.Fatalf("expected 25 rows, got %d (%v)", count, err)
	}

	published, err := store.ReadAll(ctx, external.Query{Filter: &external.Equals{Field: "Sync Status", Value: "PUBLISHED"}})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(published) != 13 {
		t.Fatalf("expected 13 published rows, got %d", len(published))
	}
	if published[0].Fields["id"] != "0" || published[1].Fields["id"] != "2" {
		t.Fatalf("expected insertion order, got %v %v", published[0].Fields["id"], published[1].Fields["id"])
	}
	love, _ := published[0].Fields["Love Types"].([]any)
	if len(love) != 1 || love[0] != "CARE" {
		t.Fatalf("expected list column to round trip, got %v", published[0].Fields["Love Types"])
	}

	target := published[0].ID
	if err := store.BatchUpdate(ctx, []external.RowUpdate{{ID: target, Fields: external.Fields{"Title": "Updated"}}}); err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	limited, err := store.ReadAll(ctx, external.Query{MaxRecords: 1})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(limited) != 1 || limited[0].Fields["Title"] != "Updated" || limited[0].Fields["Sync Status"] != "PUBLISHED" {
		t.Fatalf("expected merged update, got %+v", limited)
	}
}

func TestReadAllPagesPastPageSize(t *testing.T) {
	store := openTestStore(t)
	store.pageSize = 4
	ctx := context.Background()
	rows := make([]external.Fields, 10)
	for i := range rows {
		rows[i] = external.Fields{"id": fmt.Sprint(i)}
	}
	if err := store.BatchCreate(ctx, rows); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	all, err := store.ReadAll(ctx, external.Query{})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(all) != 10 || all[9].Fields["id"] != "9" {
		t.Fatalf("expected all 10 rows in order, got %d", len(all))
	}
}

func TestUpdateUnknownRowFailsChunk(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.BatchCreate(ctx, []external.Fields{{"id": "1", "Title": "Before"}}); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	rows, _ := store.ReadAll(ctx, external.Query{})
	err := store.BatchUpdate(ctx, []external.RowUpdate{
		{ID: rows[0].ID, Fields: external.Fields{"Title": "After"}},
		{ID: "missing", Fields: external.Fields{"Title": "x"}},
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	rows, _ = store.ReadAll(ctx, external.Query{})
	if rows[0].Fields["Title"] != "Before" {
		t.Fatalf("failed chunk must roll back, got %v", rows[0].Fields["Title"])
	}
}

func TestFormulaRejected(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.ReadAll(context.Background(), external.Query{Formula: "TRUE()"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staging.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.BatchCreate(context.Background(), []external.Fields{{"id": "1"}}); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	_ = store.Close()
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if n, _ := reopened.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 row after reopen, got %d", n)
	}
}
