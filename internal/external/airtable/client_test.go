package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ritualsync/internal/external"
	"ritualsync/internal/services"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   writeRequest
}

type fakeAirtable struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, call int)
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "Bearer tok" {
		f.t.Errorf("unexpected auth header %q", got)
	}
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	call := len(f.requests)
	f.mu.Unlock()
	f.handler(w, r, call)
}

func withAttempts(attempts int) Option {
	return func(c *Client) { c.retryMaxAttempts = attempts }
}

func withBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = base
		c.retryMaxDelay = maxDelay
	}
}

func withSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleeper = sleep }
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		withSleeper(func(context.Context, time.Duration) error { return nil }),
		withBackoff(0, 0),
	}, opts...)
	client, err := New(Config{
		APIToken: "tok",
		BaseID:   "app123",
		Table:    "Rituals",
		View:     "View1",
		BaseURL:  server.URL,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{BaseID: "app", Table: "Rituals"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := New(Config{APIToken: "tok"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestReadAllFollowsOffsets(t *testing.T) {
	fake := &fakeAirtable{t: t}
	fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
		resp := listResponse{}
		switch r.URL.Query().Get("offset") {
		case "":
			resp.Records = []apiRecord{{ID: "rec1", Fields: external.Fields{"id": "1"}}, {ID: "rec2", Fields: external.Fields{"id": "2"}}}
			resp.Offset = "page2"
		case "page2":
			resp.Records = []apiRecord{{ID: "rec3", Fields: external.Fields{"id": "3"}}}
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	rows, err := client.ReadAll(context.Background(), external.Query{
		Filter: &external.Equals{Field: "Sync Status", Value: "PUBLISHED"},
	})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 || rows[2].ID != "rec3" || rows[2].Fields["id"] != "3" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fake.requests))
	}
	first := fake.requests[0]
	if first.Path != "/app123/Rituals" {
		t.Fatalf("unexpected path %q", first.Path)
	}
	if first.Query["pageSize"] != "100" || first.Query["view"] != "View1" {
		t.Fatalf("unexpected query %v", first.Query)
	}
	if first.Query["filterByFormula"] != "{Sync Status} = 'PUBLISHED'" {
		t.Fatalf("unexpected formula %q", first.Query["filterByFormula"])
	}
}

func TestReadAllHonorsMaxRecords(t *testing.T) {
	fake := &fakeAirtable{t: t}
	fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
		_ = json.NewEncoder(w).Encode(listResponse{
			Records: []apiRecord{{ID: fmt.Sprintf("rec%d", call)}, {ID: fmt.Sprintf("rec%db", call)}},
			Offset:  "more",
		})
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	rows, err := client.ReadAll(context.Background(), external.Query{MaxRecords: 3})
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if fake.requests[0].Query["maxRecords"] != "3" {
		t.Fatalf("expected maxRecords param, got %v", fake.requests[0].Query)
	}
}

func TestBatchUpdateChunksByTen(t *testing.T) {
	fake := &fakeAirtable{t: t}
	fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	updates := make([]external.RowUpdate, 23)
	for i := range updates {
		updates[i] = external.RowUpdate{ID: fmt.Sprintf("rec%02d", i), Fields: external.Fields{"Title": "t"}}
	}
	client := newTestClient(t, server)
	if err := client.BatchUpdate(context.Background(), updates); err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if len(fake.requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(fake.requests))
	}
	sizes := []int{10, 10, 3}
	for i, req := range fake.requests {
		if req.Method != http.MethodPatch {
			t.Fatalf("expected PATCH, got %s", req.Method)
		}
		if !req.Body.Typecast {
			t.Fatal("expected typecast to be enabled")
		}
		if len(req.Body.Records) != sizes[i] {
			t.Fatalf("chunk %d: expected %d records, got %d", i, sizes[i], len(req.Body.Records))
		}
	}
	if fake.requests[2].Body.Records[0].ID != "rec20" {
		t.Fatalf("unexpected ordering: %+v", fake.requests[2].Body.Records[0])
	}
}

func TestBatchCreatePostsFields(t *testing.T) {
	fake := &fakeAirtable{t: t}
	fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	if err := client.BatchCreate(context.Background(), []external.Fields{{"id": "9", "Title": "New"}}); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	req := fake.requests[0]
	if req.Method != http.MethodPost || len(req.Body.Records) != 1 || req.Body.Records[0].Fields["Title"] != "New" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Body.Records[0].ID != "" {
		t.Fatal("create must not send a row id")
	}
}

func TestRetriesRateLimitWithRetryAfter(t *testing.T) {
	fake := &fakeAirtable{t: t}
	fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
		if call == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"type":"RATE_LIMIT_REACHED"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	var slept []time.Duration
	client := newTestClient(t, server,
		withSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
		withBackoff(time.Second, 30*time.Second),
	)
	if _, err := client.ReadAll(context.Background(), external.Query{}); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fake.requests))
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected single 2s sleep, got %v", slept)
	}
}

func TestClassifiesTerminalFailures(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusUnprocessableEntity, services.ErrValidation},
		{http.StatusInternalServerError, services.ErrTransport},
	}
	for _, tc := range cases {
		fake := &fakeAirtable{t: t}
		fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}
		server := httptest.NewServer(fake)
		client := newTestClient(t, server, withAttempts(2))
		err := client.BatchUpdate(context.Background(), []external.RowUpdate{{ID: "rec1"}})
		server.Close()
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
	}
}

func TestPacingWaitsBetweenRequests(t *testing.T) {
	fake := &fakeAirtable{t: t}
	fake.handler = func(w http.ResponseWriter, r *http.Request, call int) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	var slept []time.Duration
	client, err := New(Config{
		APIToken:          "tok",
		BaseID:            "app123",
		Table:             "Rituals",
		BaseURL:           server.URL,
		RequestsPerSecond: 5,
	}, withSleeper(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := client.BatchCreate(ctx, []external.Fields{{"id": "x"}}); err != nil {
			t.Fatalf("BatchCreate: %v", err)
		}
	}
	if len(slept) != 1 || slept[0] != 200*time.Millisecond {
		t.Fatalf("expected one 200ms pacing sleep, got %v", slept)
	}
}
