// Package localstore persists ritual records as a JSON array document.
//
// Load is lenient per record and strict per document: a missing file is an
// empty collection and a non-array document is an error, while unknown keys
// and malformed values inside a record are dropped with a warning. Save
// replaces the document atomically.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"ritualsync/internal/fileutil"
	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

// Store reads and writes one local document.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a store for the document at path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logging.NewComponentLogger(logger, "localstore")}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record in document order.
func (s *Store) Load(ctx context.Context) ([]ritual.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger)
	data, ok, err := fileutil.ReadIfExists(s.path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "localstore", "load", s.path, err)
	}
	if !ok {
		logger.Info("local document not found, starting empty", logging.String("path", s.path))
		return []ritual.Record{}, nil
	}
	if strings.TrimSpace(string(data)) == "" {
		return []ritual.Record{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, services.Wrap(services.ErrDecode, "localstore", "load", fmt.Sprintf("%s is not a JSON array", s.path), err)
	}

	records := make([]ritual.Record, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		rec, issues, err := ritual.DecodeRecord(item)
		if err != nil {
			logging.WarnWithContext(logger, "skipping malformed local record", "localstore_record_malformed",
				logging.Int("position", i),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.ErrorKind(services.ErrDecode)),
				logging.String(logging.FieldErrorHint, "fix the entry in the local document"),
				logging.String(logging.FieldImpact, "entry ignored for this run and dropped on the next save"),
			)
			continue
		}
		for _, issue := range issues {
			logging.WarnWithContext(logger, "dropping invalid local field", "localstore_field_dropped",
				logging.String(logging.FieldRecordID, rec.ID),
				logging.Int("position", i),
				logging.String("key", issue.Key),
				logging.Error(issue.Err),
				logging.String(logging.FieldErrorHint, "use only recognized keys and string or string-list values"),
				logging.String(logging.FieldImpact, "field omitted from the record"),
			)
		}
		if rec.ID == "" {
			logging.WarnWithContext(logger, "local record has no id", "localstore_missing_id",
				logging.Int("position", i),
				logging.String("title", rec.Title()),
				logging.String(logging.FieldErrorHint, "assign an id so the record can sync"),
				logging.String(logging.FieldImpact, "record kept locally but never synced"),
			)
			records = append(records, rec)
			continue
		}
		if first, dup := seen[rec.ID]; dup {
			logging.WarnWithContext(logger, "duplicate local id", "localstore_duplicate_id",
				logging.String(logging.FieldRecordID, rec.ID),
				logging.Int("position", i),
				logging.Int("first_position", first),
				logging.String(logging.FieldErrorHint, "remove or renumber the duplicate entry"),
				logging.String(logging.FieldImpact, "later occurrence ignored"),
			)
			continue
		}
		seen[rec.ID] = i
		records = append(records, rec)
	}
	logger.Debug("local document loaded", logging.String("path", s.path), logging.Int("records", len(records)))
	return records, nil
}

// Save replaces the document with records, in order. ExternalRef is never
// written.
func (s *Store) Save(ctx context.Context, records []ritual.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []ritual.Record{}
	}
	if err := fileutil.WriteJSONAtomic(s.path, records); err != nil {
		return services.Wrap(services.ErrTransport, "localstore", "save", s.path, err)
	}
	logging.WithContext(ctx, s.logger).Debug("local document saved",
		logging.String("path", s.path),
		logging.Int("records", len(records)),
	)
	return nil
}
