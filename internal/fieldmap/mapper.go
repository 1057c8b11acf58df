package fieldmap

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"ritualsync/internal/external"
	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

const (
	// ColumnSyncStatus holds the record's sync status in the external store.
	ColumnSyncStatus = "Sync Status"
	// ColumnLastUpdated is stamped on every row written by a sync.
	ColumnLastUpdated = "Last Updated"

	lastUpdatedLayout = "2006-01-02T15:04:05.000Z"
)

// Pair binds a local field to its external column.
type Pair struct {
	Local    ritual.Field
	External string
}

// DefaultPairs is the production mapping table.
var DefaultPairs = []Pair{
	{ritual.FieldID, "id"},
	{ritual.FieldTitle, "Title"},
	{ritual.FieldTagLine, "Tagline"},
	{ritual.FieldDescription, "Description"},
	{ritual.FieldHowItHelps, "How It Helps"},
	{ritual.FieldSteps, "Steps"},
	{ritual.FieldLoveTypes, "Love Types"},
	{ritual.FieldRelationalNeeds, "Relational Needs"},
	{ritual.FieldRitualMode, "Ritual Mode"},
	{ritual.FieldRitualTones, "Tone"},
	{ritual.FieldTimeTaken, "Time Taken"},
	{ritual.FieldSemanticSummary, "Semantic Summary"},
	{ritual.FieldStatus, "Status"},
}

// Mapper converts field maps in both directions.
type Mapper struct {
	pairs      []Pair
	toExternal map[ritual.Field]string
	toLocal    map[string]ritual.Field
	logger     *slog.Logger
}

// New builds a mapper from a pair table. Duplicate local fields or external
// columns are rejected so the inverse stays a bijection.
func New(pairs []Pair, logger *slog.Logger) (*Mapper, error) {
	m := &Mapper{
		pairs:      append([]Pair(nil), pairs...),
		toExternal: make(map[ritual.Field]string, len(pairs)),
		toLocal:    make(map[string]ritual.Field, len(pairs)),
		logger:     logging.NewComponentLogger(logger, "fieldmap"),
	}
	for _, p := range pairs {
		name := strings.TrimSpace(p.External)
		if name == "" {
			return nil, services.Wrap(services.ErrConfiguration, "fieldmap", "build", fmt.Sprintf("empty external column for %s", p.Local), nil)
		}
		if _, dup := m.toExternal[p.Local]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "fieldmap", "build", fmt.Sprintf("duplicate local field %s", p.Local), nil)
		}
		if _, dup := m.toLocal[name]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "fieldmap", "build", fmt.Sprintf("duplicate external column %q", name), nil)
		}
		m.toExternal[p.Local] = name
		m.toLocal[name] = p.Local
	}
	return m, nil
}

// Default returns a mapper over DefaultPairs.
func Default(logger *slog.Logger) *Mapper {
	m, err := New(DefaultPairs, logger)
	if err != nil {
		panic(err)
	}
	return m
}

// ExternalName returns the column bound to a local field.
func (m *Mapper) ExternalName(f ritual.Field) (string, bool) {
	name, ok := m.toExternal[f]
	return name, ok
}

// LocalField returns the local field bound to a column.
func (m *Mapper) LocalField(column string) (ritual.Field, bool) {
	f, ok := m.toLocal[column]
	return f, ok
}

// Fields lists the mapped local fields in table order.
func (m *Mapper) Fields() []ritual.Field {
	out := make([]ritual.Field, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p.Local)
	}
	return out
}

// ToExternal renames and encodes local fields for the external store. Fields
// without a mapping are skipped. Out-of-vocabulary values and shape mismatches
// fail with services.ErrValidation.
func (m *Mapper) ToExternal(fields map[ritual.Field]ritual.Value) (external.Fields, error) {
	out := make(external.Fields, len(fields))
	keys := make([]ritual.Field, 0, len(fields))
	for f := range fields {
		keys = append(keys, f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, f := range keys {
		column, ok := m.toExternal[f]
		if !ok {
			continue
		}
		encoded, err := encodeValue(f, fields[f])
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "fieldmap", "to external", fmt.Sprintf("field %s", f), err)
		}
		out[column] = encoded
	}
	return out, nil
}

func encodeValue(f ritual.Field, v ritual.Value) (any, error) {
	switch {
	case f == ritual.FieldSteps:
		return EncodeSteps(v.List())
	case f.IsList():
		kept, rejected := ritual.SplitTerms(f, v.List())
		if len(rejected) > 0 {
			return nil, fmt.Errorf("unknown values %s", strings.Join(rejected, ", "))
		}
		if kept == nil {
			kept = []string{}
		}
		return kept, nil
	}
	if v.Kind() == ritual.KindNull {
		return nil, nil
	}
	if v.Kind() == ritual.KindList {
		return nil, fmt.Errorf("expected a single value, got a list")
	}
	if _, closed := ritual.Vocabulary(f); closed {
		if strings.TrimSpace(v.Str()) == "" {
			return nil, nil
		}
		canonical, ok := ritual.CanonicalTerm(f, v.Str())
		if !ok {
			return nil, fmt.Errorf("unknown value %q", v.Str())
		}
		return canonical, nil
	}
	return v.Str(), nil
}

// ToLocal renames and decodes an external row's columns. Unmapped columns are
// ignored. Malformed or out-of-vocabulary values are logged and dropped.
func (m *Mapper) ToLocal(fields external.Fields) map[ritual.Field]ritual.Value {
	out := make(map[ritual.Field]ritual.Value, len(fields))
	recordID := fields.StringField(m.toExternal[ritual.FieldID])
	for column, raw := range fields {
		f, ok := m.toLocal[column]
		if !ok {
			continue
		}
		value, ok := m.decodeValue(recordID, f, raw)
		if !ok {
			continue
		}
		out[f] = value
	}
	return out
}

func (m *Mapper) decodeValue(recordID string, f ritual.Field, raw any) (ritual.Value, bool) {
	switch {
	case f == ritual.FieldSteps:
		return m.decodeSteps(recordID, raw), true
	case f.IsList():
		terms := toStrings(raw)
		kept, rejected := ritual.SplitTerms(f, terms)
		if len(rejected) > 0 {
			logging.WarnWithContext(m.logger, "dropping unknown vocabulary values", "fieldmap_unknown_terms",
				logging.String(logging.FieldRecordID, recordID),
				logging.String("field", string(f)),
				logging.Strings("values", rejected),
				logging.String(logging.FieldErrorHint, "correct the values in the external store"),
				logging.String(logging.FieldImpact, "values omitted from the local record"),
			)
		}
		if kept == nil {
			kept = []string{}
		}
		return ritual.ListValue(kept), true
	}
	if raw == nil {
		return ritual.Null(), true
	}
	text := scalarString(raw)
	if _, closed := ritual.Vocabulary(f); closed {
		if strings.TrimSpace(text) == "" {
			return ritual.Null(), true
		}
		canonical, ok := ritual.CanonicalTerm(f, text)
		if !ok {
			logging.WarnWithContext(m.logger, "dropping unknown vocabulary value", "fieldmap_unknown_terms",
				logging.String(logging.FieldRecordID, recordID),
				logging.String("field", string(f)),
				logging.String("value", text),
				logging.String(logging.FieldErrorHint, "correct the value in the external store"),
				logging.String(logging.FieldImpact, "field omitted from the local record"),
			)
			return ritual.Value{}, false
		}
		return ritual.StringValue(canonical), true
	}
	return ritual.StringValue(text), true
}

func (m *Mapper) decodeSteps(recordID string, raw any) ritual.Value {
	switch v := raw.(type) {
	case nil:
		return ritual.ListValue([]string{})
	case string:
		steps, err := DecodeSteps(v)
		if err != nil {
			logging.WarnWithContext(m.logger, "steps cell is not a JSON list", "fieldmap_steps_malformed",
				logging.String(logging.FieldRecordID, recordID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "store steps as a JSON array of strings"),
				logging.String(logging.FieldImpact, "steps treated as empty"),
			)
			return ritual.ListValue([]string{})
		}
		return ritual.ListValue(steps)
	case []any, []string:
		return ritual.ListValue(ritual.NormalizeSteps(toStrings(v)))
	default:
		logging.WarnWithContext(m.logger, "steps cell has unexpected type", "fieldmap_steps_malformed",
			logging.String(logging.FieldRecordID, recordID),
			logging.String("type", fmt.Sprintf("%T", raw)),
			logging.String(logging.FieldImpact, "steps treated as empty"),
		)
		return ritual.ListValue([]string{})
	}
}

// RecordToExternal encodes a whole record, including its id and sync status.
func (m *Mapper) RecordToExternal(rec ritual.Record) (external.Fields, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return nil, services.Wrap(services.ErrValidation, "fieldmap", "to external", "record has no id", nil)
	}
	out, err := m.ToExternal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if column, ok := m.toExternal[ritual.FieldID]; ok {
		out[column] = rec.ID
	}
	if rec.SyncStatus != "" {
		out[ColumnSyncStatus] = string(rec.SyncStatus)
	}
	return out, nil
}

// RecordFromRow decodes an external row into a record, remembering the row's
// opaque identifier. Rows without a ritual id fail with services.ErrValidation.
func (m *Mapper) RecordFromRow(row external.Row) (ritual.Record, error) {
	idColumn := m.toExternal[ritual.FieldID]
	id := row.Fields.StringField(idColumn)
	if id == "" {
		return ritual.Record{}, services.Wrap(services.ErrValidation, "fieldmap", "from external", fmt.Sprintf("row %s has no %q value", row.ID, idColumn), nil)
	}
	rec := ritual.New(id)
	rec.ExternalRef = row.ID
	for f, v := range m.ToLocal(row.Fields) {
		if f == ritual.FieldID {
			continue
		}
		rec.Set(f, v)
	}
	if raw := row.Fields.StringField(ColumnSyncStatus); raw != "" {
		status, err := ritual.ParseStatus(raw)
		if err != nil {
			logging.WarnWithContext(m.logger, "ignoring unknown sync status", "fieldmap_unknown_status",
				logging.String(logging.FieldRecordID, id),
				logging.String("value", raw),
				logging.String(logging.FieldImpact, "record treated as having no sync status"),
			)
		} else {
			rec.SyncStatus = status
		}
	}
	return rec, nil
}

// LastUpdated formats t for the Last Updated column.
func LastUpdated(t time.Time) string {
	return t.UTC().Format(lastUpdatedLayout)
}

func toStrings(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, scalarString(item))
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{scalarString(v)}
	}
}

func scalarString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		return strings.Join(toStrings(v), ", ")
	default:
		return fmt.Sprint(v)
	}
}
