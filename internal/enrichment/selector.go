package enrichment

import (
	"fmt"
	"strings"

	"ritualsync/internal/ritual"
)

const (
	SelectionStatus       = "status"
	SelectionMissingSteps = "missing_steps"
)

// Selector decides whether a record is eligible for enrichment.
type Selector func(ritual.Record) bool

// SelectStatus picks records whose sync status equals status.
func SelectStatus(status ritual.Status) Selector {
	return func(r ritual.Record) bool {
		return r.SyncStatus == status
	}
}

// SelectMissingSteps picks records without any steps.
func SelectMissingSteps() Selector {
	return func(r ritual.Record) bool {
		return len(r.Steps()) == 0
	}
}

// SelectorFor resolves a configured selection name.
func SelectorFor(name string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SelectionStatus:
		return SelectStatus(ritual.StatusGenerate), nil
	case SelectionMissingSteps:
		return SelectMissingSteps(), nil
	default:
		return nil, fmt.Errorf("unknown selection %q (want %s or %s)", name, SelectionStatus, SelectionMissingSteps)
	}
}
