// Package prompts holds the embedded system prompts for ritual enrichment.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed *.txt
var files embed.FS

// DefaultVariant is the prompt used when none is configured.
const DefaultVariant = "ritual_details_v2"

// Variants lists the embedded prompt names.
func Variants() []string {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

// Load returns the embedded prompt text for variant.
func Load(variant string) (string, error) {
	variant = strings.TrimSpace(variant)
	if variant == "" {
		variant = DefaultVariant
	}
	data, err := files.ReadFile(variant + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt variant %q (available: %s)", variant, strings.Join(Variants(), ", "))
	}
	return string(data), nil
}

// Resolve returns the system prompt and the name recorded in the audit log.
// A non-empty overridePath replaces the embedded variant with the file's
// content; the recorded name is then "file:<basename>".
func Resolve(variant, overridePath string) (text, name string, err error) {
	if path := strings.TrimSpace(overridePath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("read system prompt: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", "", fmt.Errorf("system prompt %s is empty", path)
		}
		return string(data), "file:" + filepath.Base(path), nil
	}
	if strings.TrimSpace(variant) == "" {
		variant = DefaultVariant
	}
	text, err = Load(variant)
	if err != nil {
		return "", "", err
	}
	return text, strings.TrimSpace(variant), nil
}
