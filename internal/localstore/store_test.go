package localstore_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ritualsync/internal/localstore"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := localstore.New(filepath.Join(t.TempDir(), "rituals.json"), nil)
	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty collection, got %d", len(records))
	}
}

func TestLoadRejectsNonArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rituals.json")
	if err := os.WriteFile(path, []byte(`{"id":"1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := localstore.New(path, nil).Load(context.Background())
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestLoadIsLenientPerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rituals.json")
	doc := `[
  {"id": "1", "title": "One", "mood": "sunny", "steps": "not a list", "syncStatus": "generate"},
  42,
  {"title": "No id"},
  {"id": "1", "title": "Duplicate"},
  {"id": "2", "title": "Two"}
]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	records, err := localstore.New(path, logger).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	first := records[0]
	if first.Title() != "One" || first.SyncStatus != ritual.StatusGenerate {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Has("mood") {
		t.Fatal("unknown key should be dropped")
	}
	if steps := first.Get(ritual.FieldSteps); steps.Kind() != ritual.KindList || len(steps.List()) != 0 {
		t.Fatalf("malformed steps should become empty list, got %v", steps)
	}
	if records[1].ID != "" || records[1].Title() != "No id" {
		t.Fatalf("record without id should be retained, got %+v", records[1])
	}
	if records[2].ID != "2" {
		t.Fatalf("expected record 2 last, got %+v", records[2])
	}
	logs := buf.String()
	for _, want := range []string{"localstore_field_dropped", "localstore_record_malformed", "localstore_missing_id", "localstore_duplicate_id"} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %s warning, logs: %s", want, logs)
		}
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "rituals.json")
	store := localstore.New(path, nil)
	rec := ritual.New("r-1")
	rec.Set(ritual.FieldTitle, ritual.StringValue("Tea & Talk"))
	rec.Set(ritual.FieldSteps, ritual.ListValue([]string{"Brew", "Sit"}))
	rec.SyncStatus = ritual.StatusReview
	rec.ExternalRef = "recXYZ"

	ctx := context.Background()
	if err := store.Save(ctx, []ritual.Record{rec}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "recXYZ") {
		t.Fatal("external ref must not be persisted")
	}
	if !strings.Contains(string(raw), "\n  {\n    \"id\": \"r-1\"") {
		t.Fatalf("expected two-space indentation, got:\n%s", raw)
	}
	if !strings.Contains(string(raw), "Tea & Talk") {
		t.Fatalf("expected unescaped title, got:\n%s", raw)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Title() != "Tea & Talk" || loaded[0].SyncStatus != ritual.StatusReview {
		t.Fatalf("unexpected round trip: %+v", loaded)
	}
	if got := loaded[0].Steps(); len(got) != 2 || got[1] != "Sit" {
		t.Fatalf("unexpected steps %v", got)
	}
}

func TestSaveEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rituals.json")
	if err := localstore.New(path, nil).Save(context.Background(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty array, got %q", raw)
	}
}
