package external

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. It records every write request so
// callers can inspect chunking.
type MemoryStore struct {
	mu      sync.Mutex
	rows    []Row
	nextID  int
	creates [][]Fields
	updates [][]RowUpdate
}

// NewMemoryStore seeds a store with rows. Rows without an ID get one.
func NewMemoryStore(rows ...Row) *MemoryStore {
	s := &MemoryStore{}
	for _, row := range rows {
		if row.ID == "" {
			row.ID = s.newID()
		}
		s.rows = append(s.rows, Row{ID: row.ID, Fields: row.Fields.Clone()})
	}
	return s
}

func (s *MemoryStore) newID() string {
	s.nextID++
	return fmt.Sprintf("mem%05d", s.nextID)
}

// ReadAll returns copies of the matching rows in insertion order.
func (s *MemoryStore) ReadAll(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Formula != "" {
		return nil, errors.New("memory store: raw formulas are not supported")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		if q.Filter != nil && row.Fields.StringField(q.Filter.Field) != q.Filter.Value {
			continue
		}
		out = append(out, Row{ID: row.ID, Fields: row.Fields.Clone()})
		if q.MaxRecords > 0 && len(out) >= q.MaxRecords {
			break
		}
	}
	return out, nil
}

// BatchCreate appends rows.
func (s *MemoryStore) BatchCreate(ctx context.Context, rows []Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := make([]Fields, 0, len(rows))
	for _, fields := range rows {
		s.rows = append(s.rows, Row{ID: s.newID(), Fields: fields.Clone()})
		recorded = append(recorded, fields.Clone())
	}
	s.creates = append(s.creates, recorded)
	return nil
}

// BatchUpdate merges the given columns into existing rows. Unknown row IDs
// fail the whole request without applying any of it.
func (s *MemoryStore) BatchUpdate(ctx context.Context, updates []RowUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index := make(map[string]int, len(s.rows))
	for i, row := range s.rows {
		index[row.ID] = i
	}
	for _, u := range updates {
		if _, ok := index[u.ID]; !ok {
			return fmt.Errorf("memory store: row %s not found", u.ID)
		}
	}
	recorded := make([]RowUpdate, 0, len(updates))
	for _, u := range updates {
		row := &s.rows[index[u.ID]]
		if row.Fields == nil {
			row.Fields = Fields{}
		}
		for k, v := range u.Fields {
			row.Fields[k] = v
		}
		recorded = append(recorded, RowUpdate{ID: u.ID, Fields: u.Fields.Clone()})
	}
	s.updates = append(s.updates, recorded)
	return nil
}

// Rows returns a snapshot of every stored row.
func (s *MemoryStore) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, Row{ID: row.ID, Fields: row.Fields.Clone()})
	}
	return out
}

// CreateRequests returns the rows sent by each BatchCreate call.
func (s *MemoryStore) CreateRequests() [][]Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Fields(nil), s.creates...)
}

// UpdateRequests returns the updates sent by each BatchUpdate call.
func (s *MemoryStore) UpdateRequests() [][]RowUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]RowUpdate(nil), s.updates...)
}
