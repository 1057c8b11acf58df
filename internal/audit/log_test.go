package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

func TestAppendAssignsIdentityAndPreservesHistory(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "enrichment_audit.json"))
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }
	ctx := services.WithRunID(context.Background(), "run-1")

	first, err := log.Append(ctx, ritual.AuditEntry{
		BatchIndex:    1,
		BatchSize:     2,
		PromptVariant: "ritual_details_v2",
		RecordIDs:     []string{"a", "b"},
		Usage:         ritual.Usage{Model: "m", TotalTokens: 10},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID == "" || !first.Timestamp.Equal(fixed) || first.RunID != "run-1" {
		t.Fatalf("expected generated id, timestamp and run id, got %+v", first)
	}
	second, err := log.Append(ctx, ritual.AuditEntry{ID: "fixed-id", BatchIndex: 2})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.ID != "fixed-id" {
		t.Fatalf("explicit id should be kept, got %q", second.ID)
	}

	entries, err := log.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != first.ID || entries[0].Usage.TotalTokens != 10 || entries[0].RecordIDs[1] != "b" {
		t.Fatalf("first entry changed: %+v", entries[0])
	}
	if entries[1].BatchIndex != 2 {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestListMissingIsEmpty(t *testing.T) {
	entries, err := New(filepath.Join(t.TempDir(), "none.json")).List(context.Background())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty list, got %v %v", entries, err)
	}
}

func TestAppendRefusesCorruptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(path).Append(context.Background(), ritual.AuditEntry{})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "not json" {
		t.Fatal("corrupt log must not be overwritten")
	}
}
