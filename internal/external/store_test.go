package external_test

import (
	"context"
	"testing"

	"ritualsync/internal/external"
)

func TestChunk(t *testing.T) {
	items := make([]int, 23)
	chunks := external.Chunk(items, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 10 || len(chunks[1]) != 10 || len(chunks[2]) != 3 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if got := external.Chunk([]int{}, 10); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestFilterFormula(t *testing.T) {
	tests := []struct {
		name  string
		query external.Query
		want  string
	}{
		{"empty", external.Query{}, ""},
		{"equals", external.Query{Filter: &external.Equals{Field: "Sync Status", Value: "PUBLISHED"}}, "{Sync Status} = 'PUBLISHED'"},
		{"escaped", external.Query{Filter: &external.Equals{Field: "Title", Value: "Kid's Night"}}, `{Title} = 'Kid\'s Night'`},
		{"combined", external.Query{Filter: &external.Equals{Field: "Sync Status", Value: "GENERATE"}, Formula: "NOT({Title} = '')"}, "AND({Sync Status} = 'GENERATE', NOT({Title} = ''))"},
	}
	for _, tc := range tests {
		if got := tc.query.FilterFormula(); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestMemoryStoreFiltersAndUpdates(t *testing.T) {
	store := external.NewMemoryStore(
		external.Row{Fields: external.Fields{"id": "1", "Sync Status": "PUBLISHED"}},
		external.Row{Fields: external.Fields{"id": "2", "Sync Status": "REVIEW"}},
	)
	ctx := context.Background()
	rows, err := store.ReadAll(ctx, external.Query{Filter: &external.Equals{Field: "Sync Status", Value: "PUBLISHED"}})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 1 || rows[0].Fields["id"] != "1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if err := store.BatchUpdate(ctx, []external.RowUpdate{{ID: rows[0].ID, Fields: external.Fields{"Title": "New"}}}); err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if err := store.BatchUpdate(ctx, []external.RowUpdate{{ID: "missing"}}); err == nil {
		t.Fatal("expected unknown row to fail")
	}
	all := store.Rows()
	if all[0].Fields["Title"] != "New" || all[0].Fields["Sync Status"] != "PUBLISHED" {
		t.Fatalf("expected merge update, got %+v", all[0].Fields)
	}
	if len(store.UpdateRequests()) != 1 {
		t.Fatalf("expected one recorded update request, got %d", len(store.UpdateRequests()))
	}
}
