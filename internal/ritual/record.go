package ritual

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Record is the canonical unit of work shared by both stores.
type Record struct {
	ID         string
	Fields     map[Field]Value
	SyncStatus Status
	// ExternalRef is the opaque row identifier of the external store. It is
	// only set on records materialized from that store and is never persisted
	// locally.
	ExternalRef string
}

// New builds a record with the given id and no fields.
func New(id string) Record {
	return Record{ID: id, Fields: make(map[Field]Value)}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[Field]Value, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = copyValue(v)
	}
	return out
}

func copyValue(v Value) Value {
	if v.Kind() == KindList {
		return ListValue(v.list)
	}
	return v
}

// Get returns the field value, or null when absent.
func (r Record) Get(f Field) Value {
	if f == FieldID {
		if r.ID == "" {
			return Null()
		}
		return StringValue(r.ID)
	}
	if r.Fields == nil {
		return Null()
	}
	return r.Fields[f]
}

// Has reports whether the field is present (possibly null).
func (r Record) Has(f Field) bool {
	if f == FieldID {
		return r.ID != ""
	}
	_, ok := r.Fields[f]
	return ok
}

// Set assigns a field. Setting id updates Record.ID. Steps are normalized to
// an ordered list of trimmed, non-empty strings.
func (r *Record) Set(f Field, v Value) {
	if f == FieldID {
		r.ID = strings.TrimSpace(v.Str())
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[Field]Value)
	}
	if f == FieldSteps && v.Kind() != KindNull {
		v = ListValue(NormalizeSteps(v.List()))
	}
	r.Fields[f] = v
}

// Title returns the trimmed title.
func (r Record) Title() string {
	return strings.TrimSpace(r.Get(FieldTitle).Str())
}

// Steps returns the record's steps.
func (r Record) Steps() []string {
	return r.Get(FieldSteps).List()
}

// NormalizeSteps trims every step and drops empty ones, preserving order.
func NormalizeSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		if trimmed := strings.TrimSpace(step); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DecodeIssue describes a field-scoped problem found while decoding a record.
// The affected key is dropped or defaulted; the rest of the record survives.
type DecodeIssue struct {
	Key string
	Err error
}

func (i DecodeIssue) Error() string {
	return fmt.Sprintf("%s: %v", i.Key, i.Err)
}

// DecodeRecord decodes one local-document object leniently: unknown keys and
// malformed values are reported as issues and dropped.
func DecodeRecord(data []byte) (Record, []DecodeIssue, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	rec := New("")
	var issues []DecodeIssue
	for key, msg := range raw {
		if key == SyncStatusKey {
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				issues = append(issues, DecodeIssue{Key: key, Err: err})
				continue
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			status, err := ParseStatus(s)
			if err != nil {
				issues = append(issues, DecodeIssue{Key: key, Err: err})
				continue
			}
			rec.SyncStatus = status
			continue
		}
		field, err := ParseField(key)
		if err != nil {
			issues = append(issues, DecodeIssue{Key: key, Err: err})
			continue
		}
		var v Value
		if err := v.UnmarshalJSON(msg); err != nil {
			if field == FieldSteps {
				rec.Set(FieldSteps, ListValue(nil))
			}
			issues = append(issues, DecodeIssue{Key: key, Err: err})
			continue
		}
		rec.Set(field, v)
	}
	return rec, issues, nil
}

// MarshalJSON writes the local-document form: id, then fields in schema
// order, then syncStatus.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, _ := json.Marshal(key)
		buf.Write(keyJSON)
		buf.WriteByte(':')
	}
	if r.ID != "" {
		writeKey(string(FieldID))
		encoded, err := marshalNoEscape(r.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	for _, f := range allFields {
		if f == FieldID {
			continue
		}
		v, ok := r.Fields[f]
		if !ok {
			continue
		}
		if f == FieldSteps && v.Kind() != KindList {
			v = ListValue(NormalizeSteps(v.List()))
		}
		writeKey(string(f))
		encoded, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f, err)
		}
		buf.Write(encoded)
	}
	if r.SyncStatus != "" {
		writeKey(SyncStatusKey)
		encoded, err := json.Marshal(string(r.SyncStatus))
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes strictly: any decode issue is an error.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, issues, err := DecodeRecord(data)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		errs := make([]error, 0, len(issues))
		for _, issue := range issues {
			errs = append(errs, issue)
		}
		return errors.Join(errs...)
	}
	*r = rec
	return nil
}
