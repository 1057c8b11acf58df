package fieldmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"ritualsync/internal/ritual"
)

// EncodeSteps renders steps as the external text cell. Blank steps are
// dropped; an empty list encodes as "[]". Steps must be valid UTF-8 so the
// cell decodes back to the same list.
func EncodeSteps(steps []string) (string, error) {
	normalized := ritual.NormalizeSteps(steps)
	for i, step := range normalized {
		if !utf8.ValidString(step) {
			return "", fmt.Errorf("step %d is not valid UTF-8", i+1)
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalized); err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DecodeSteps parses the external text cell. Blank input is an empty list.
// Anything that is not a JSON array of strings is an error.
func DecodeSteps(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}, nil
	}
	var steps []string
	if err := json.Unmarshal([]byte(trimmed), &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	return ritual.NormalizeSteps(steps), nil
}
