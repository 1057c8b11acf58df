// Package audit keeps the append-only log of successful enrichment calls.
//
// The log is a single JSON array. Append reads the whole document, adds one
// entry and rewrites it atomically, so an interrupted write leaves the
// previous log intact. Existing entries are never modified.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ritualsync/internal/fileutil"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

// Log is one audit document.
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// New returns a log backed by path.
func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the document location.
func (l *Log) Path() string {
	return l.path
}

// Append stores entry, assigning an id and timestamp when they are unset. The
// stored entry is returned.
func (l *Log) Append(ctx context.Context, entry ritual.AuditEntry) (ritual.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return ritual.AuditEntry{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.RunID == "" {
		if runID, ok := services.RunIDFromContext(ctx); ok {
			entry.RunID = runID
		}
	}
	entries, err := l.read()
	if err != nil {
		return ritual.AuditEntry{}, err
	}
	entries = append(entries, entry)
	if err := fileutil.WriteJSONAtomic(l.path, entries); err != nil {
		return ritual.AuditEntry{}, services.Wrap(services.ErrTransport, "audit", "append", l.path, err)
	}
	return entry, nil
}

// List returns every entry, oldest first.
func (l *Log) List(ctx context.Context) ([]ritual.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Log) read() ([]ritual.AuditEntry, error) {
	data, ok, err := fileutil.ReadIfExists(l.path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "audit", "read", l.path, err)
	}
	if !ok || strings.TrimSpace(string(data)) == "" {
		return []ritual.AuditEntry{}, nil
	}
	var entries []ritual.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrDecode, "audit", "read", fmt.Sprintf("%s is not a JSON array of entries", l.path), err)
	}
	return entries, nil
}
