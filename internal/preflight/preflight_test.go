package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ritualsync/internal/config"
	"ritualsync/internal/external"
	"ritualsync/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLocalDocument(t *testing.T) {
	dir := t.TempDir()
	missing := CheckLocalDocument(context.Background(), filepath.Join(dir, "rituals.json"))
	if !missing.Passed || !strings.Contains(missing.Detail, "not created yet") {
		t.Fatalf("missing document should pass, got %+v", missing)
	}

	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`[{"id":"a","title":"A"},{"id":"b","title":"B"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckLocalDocument(context.Background(), good); !r.Passed || !strings.Contains(r.Detail, "2 records") {
		t.Fatalf("unexpected result %+v", r)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckLocalDocument(context.Background(), bad); r.Passed {
		t.Fatalf("expected failure for non-array document, got %+v", r)
	}
}

func TestCheckAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	if r := CheckAuditLog(context.Background(), path); !r.Passed {
		t.Fatalf("missing audit log should pass, got %+v", r)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckAuditLog(context.Background(), path); r.Passed {
		t.Fatal("expected failure for corrupt audit log")
	}
}

type failingStore struct {
	*external.MemoryStore
	err error
}

func (f failingStore) ReadAll(context.Context, external.Query) ([]external.Row, error) {
	return nil, f.err
}

func TestCheckExternalStore(t *testing.T) {
	ok := CheckExternalStore(context.Background(), "store", external.NewMemoryStore(external.Row{Fields: external.Fields{"id": "a"}}))
	if !ok.Passed || ok.Detail != "Reachable" {
		t.Fatalf("unexpected result %+v", ok)
	}
	empty := CheckExternalStore(context.Background(), "store", external.NewMemoryStore())
	if !empty.Passed || !strings.Contains(empty.Detail, "empty") {
		t.Fatalf("unexpected result %+v", empty)
	}

	authErr := services.Wrap(services.ErrConfiguration, "airtable", "read", "status 401", nil)
	failed := CheckExternalStore(context.Background(), "store", failingStore{MemoryStore: external.NewMemoryStore(), err: authErr})
	if failed.Passed || !strings.HasPrefix(failed.Detail, "auth failed") {
		t.Fatalf("unexpected result %+v", failed)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{})
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, nil, nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsOpenError(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = dir
	cfg.Paths.LocalStore = filepath.Join(dir, "rituals.json")
	cfg.Paths.AuditLog = filepath.Join(dir, "audit.json")
	cfg.LLM.APIKey = ""

	results := RunAll(context.Background(), &cfg, nil, errors.New("api token required"))
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if Failed(results) != 2 {
		t.Fatalf("expected store and LLM checks to fail, got %+v", results)
	}
	if results[3].Detail != "api token required" {
		t.Fatalf("store detail = %q", results[3].Detail)
	}
}
