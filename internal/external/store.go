package external

import (
	"context"
	"fmt"
	"strings"
)

const (
	// MaxPageSize is the per-request page ceiling for reads.
	MaxPageSize = 100
	// MaxBatchSize is the per-request row ceiling for creates and updates.
	MaxBatchSize = 10
)

// Fields is a row's column values keyed by external column name.
type Fields map[string]any

// Row is one external row.
type Row struct {
	// ID is the store's opaque row identifier.
	ID     string
	Fields Fields
}

// RowUpdate targets an existing row by its opaque identifier.
type RowUpdate struct {
	ID     string
	Fields Fields
}

// Equals filters rows whose column equals a string value.
type Equals struct {
	Field string
	Value string
}

// Query narrows ReadAll. The zero Query reads every row.
type Query struct {
	Filter *Equals
	// Formula is a raw store-specific filter expression. Stores that cannot
	// evaluate formulas reject it.
	Formula    string
	View       string
	MaxRecords int
}

// Store is the read/write surface the sync engine and enrichment pipeline use.
type Store interface {
	ReadAll(ctx context.Context, q Query) ([]Row, error)
	BatchCreate(ctx context.Context, rows []Fields) error
	BatchUpdate(ctx context.Context, updates []RowUpdate) error
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// FilterFormula renders the query filter in Airtable formula syntax, combining
// Filter and Formula with AND() when both are set.
func (q Query) FilterFormula() string {
	var parts []string
	if q.Filter != nil && strings.TrimSpace(q.Filter.Field) != "" {
		parts = append(parts, fmt.Sprintf("{%s} = '%s'", q.Filter.Field, escapeFormulaString(q.Filter.Value)))
	}
	if formula := strings.TrimSpace(q.Formula); formula != "" {
		parts = append(parts, formula)
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "AND(" + strings.Join(parts, ", ") + ")"
	}
}

func escapeFormulaString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `\'`)
}

// StringField returns a column as a trimmed string when it holds one.
func (f Fields) StringField(name string) string {
	if f == nil {
		return ""
	}
	switch v := f[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
