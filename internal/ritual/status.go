package ritual

import (
	"fmt"
	"strings"
)

// Status is the enrichment/publication lifecycle tag carried by every record.
type Status string

const (
	// StatusGenerate marks a record that needs enrichment.
	StatusGenerate Status = "GENERATE"
	// StatusReview marks a record whose enrichment awaits human approval.
	StatusReview Status = "REVIEW"
	// StatusError marks a record whose enrichment call failed.
	StatusError Status = "ERROR"
	// StatusPublished marks an approved record eligible for outward sync.
	StatusPublished Status = "PUBLISHED"
)

var allStatuses = []Status{StatusGenerate, StatusReview, StatusError, StatusPublished}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus resolves a status case-insensitively, ignoring surrounding whitespace.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sync status %q", value)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
