package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVariantsIncludeDefault(t *testing.T) {
	variants := Variants()
	if strings.Join(variants, ",") != "ritual_details_v1,ritual_details_v2" {
		t.Fatalf("unexpected variants %v", variants)
	}
	text, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if !strings.Contains(text, `{"rituals": [...]}`) {
		t.Fatal("default prompt should describe the rituals envelope")
	}
}

func TestLoadUnknownVariant(t *testing.T) {
	if _, err := Load("ritual_details_v9"); err == nil || !strings.Contains(err.Error(), "ritual_details_v1") {
		t.Fatalf("expected error listing variants, got %v", err)
	}
}

func TestResolveOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.txt")
	if err := os.WriteFile(path, []byte("Return JSON."), 0o644); err != nil {
		t.Fatal(err)
	}
	text, name, err := Resolve("ritual_details_v1", path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if text != "Return JSON." || name != "file:custom.txt" {
		t.Fatalf("unexpected resolve result %q %q", text, name)
	}
	_, name, err = Resolve("ritual_details_v1", "")
	if err != nil || name != "ritual_details_v1" {
		t.Fatalf("unexpected embedded resolve %q %v", name, err)
	}
}
