package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
	"ritualsync/internal/syncengine"
	"ritualsync/internal/testsupport"
)

type airtableWrite struct {
	method  string
	records []map[string]any
}

// airtableTable serves one existing row and records every write.
type airtableTable struct {
	mu     sync.Mutex
	writes []airtableWrite
}

func (a *airtableTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/appTest/Rituals" {
		http.Error(w, "unknown table", http.StatusNotFound)
		return
	}
	if r.Header.Get("Authorization") != "Bearer test-token" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []any{
				map[string]any{"id": "rec1", "fields": map[string]any{"id": "a", "Title": "Old"}},
			},
		})
		return
	}
	var body struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.mu.Lock()
	a.writes = append(a.writes, airtableWrite{method: r.Method, records: body.Records})
	a.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"records": body.Records})
}

func TestSyncToAirtableNotifiesNtfy(t *testing.T) {
	table := &airtableTable{}
	airtableServer := httptest.NewServer(table)
	defer airtableServer.Close()

	var mu sync.Mutex
	var titles, messages []string
	ntfyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		messages = append(messages, string(body))
		mu.Unlock()
	}))
	defer ntfyServer.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithAirtable(airtableServer.URL),
		testsupport.WithNtfy(ntfyServer.URL),
	)
	testsupport.WriteRecords(t, cfg.Paths.LocalStore,
		testsupport.Ritual("a", "Morning Gratitude", ritual.StatusPublished),
		testsupport.Ritual("b", "Evening Walk", ritual.StatusReview),
	)

	runner := New(cfg, logging.NewNop())
	report, err := runner.Sync(context.Background(), SyncRequest{Direction: syncengine.ToExternal})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Updated != 1 || report.Created != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	table.mu.Lock()
	writes := table.writes
	table.mu.Unlock()
	methods := map[string]map[string]any{}
	for _, w := range writes {
		if len(w.records) != 1 {
			t.Fatalf("expected one record per write, got %+v", w)
		}
		methods[w.method] = w.records[0]
	}
	patch, ok := methods[http.MethodPatch]
	if !ok || patch["id"] != "rec1" {
		t.Fatalf("expected PATCH of rec1, got %+v", writes)
	}
	if fields, _ := patch["fields"].(map[string]any); fields["Title"] != "Morning Gratitude" {
		t.Fatalf("unexpected patch fields %+v", patch)
	}
	post, ok := methods[http.MethodPost]
	if !ok {
		t.Fatalf("expected POST for new record, got %+v", writes)
	}
	if fields, _ := post["fields"].(map[string]any); fields["id"] != "b" {
		t.Fatalf("unexpected create fields %+v", post)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 || titles[0] != "Ritualsync - Sync Complete" {
		t.Fatalf("unexpected notifications %v", titles)
	}
	if !strings.Contains(messages[0], "1 updated, 1 created") {
		t.Fatalf("unexpected notification body %q", messages[0])
	}
}
