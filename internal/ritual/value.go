package ritual

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindList
)

// Value is a field value: a string, an ordered list of strings, or null.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	list []string
}

// StringValue wraps a string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// ListValue wraps a copy of items.
func ListValue(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

func (v Value) Kind() Kind { return v.kind }

// Str returns the string variant, or "" for lists and null.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// List returns a copy of the list variant. A string value is returned as a
// single-element list when non-empty.
func (v Value) List() []string {
	switch v.kind {
	case KindList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	case KindString:
		if strings.TrimSpace(v.str) == "" {
			return nil
		}
		return []string{v.str}
	default:
		return nil
	}
}

// IsEmpty reports whether the value is null, blank, or an empty list.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	default:
		return true
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindList:
		return slices.Equal(v.list, other.list)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return marshalNoEscape(v.str)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return marshalNoEscape(v.list)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Null()
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("list value must contain only strings: %w", err)
		}
		if items == nil {
			items = []string{}
		}
		*v = ListValue(items)
		return nil
	default:
		return fmt.Errorf("unsupported value %s: want string, list of strings, or null", snippet(trimmed))
	}
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func snippet(data []byte) string {
	const limit = 40
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
