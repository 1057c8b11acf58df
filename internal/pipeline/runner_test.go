package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/gofrs/flock"

	"ritualsync/internal/audit"
	"ritualsync/internal/enrichment"
	"ritualsync/internal/external"
	"ritualsync/internal/fieldmap"
	"ritualsync/internal/logging"
	"ritualsync/internal/notifications"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
	"ritualsync/internal/syncengine"
	"ritualsync/internal/testsupport"
)

type recordingNotifier struct {
	syncs   []notifications.SyncSummary
	enrichs []notifications.EnrichmentSummary
	errs    []string
}

func (n *recordingNotifier) NotifySyncCompleted(_ context.Context, s notifications.SyncSummary) error {
	n.syncs = append(n.syncs, s)
	return nil
}

func (n *recordingNotifier) NotifyEnrichmentCompleted(_ context.Context, s notifications.EnrichmentSummary) error {
	n.enrichs = append(n.enrichs, s)
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, label string) error {
	n.errs = append(n.errs, label+": "+err.Error())
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func TestEnrichLocalCommitsEveryBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Enrichment.BatchSize = 2
	testsupport.WriteRecords(t, cfg.Paths.LocalStore,
		testsupport.Ritual("a", "Morning Gratitude", ritual.StatusGenerate),
		testsupport.Ritual("b", "Evening Walk", ritual.StatusGenerate),
		testsupport.Ritual("c", "Published Already", ritual.StatusPublished),
		testsupport.Ritual("d", "Tea Together", ritual.StatusGenerate),
	)
	invoker := &testsupport.FakeInvoker{}
	notifier := &recordingNotifier{}
	runner := New(cfg, logging.NewNop(), WithInvoker(invoker), WithNotifier(notifier))

	result, err := runner.Enrich(context.Background(), EnrichRequest{Source: SourceLocal})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected a run id")
	}
	if result.Outcome.Enriched != 3 || result.Outcome.Batches != 2 {
		t.Fatalf("unexpected outcome %+v", result.Outcome)
	}
	if len(invoker.Payloads()) != 2 {
		t.Fatalf("expected 2 generation calls, got %d", len(invoker.Payloads()))
	}

	got := testsupport.ReadRecords(t, cfg.Paths.LocalStore)
	want := map[string]ritual.Status{"a": ritual.StatusReview, "b": ritual.StatusReview, "c": ritual.StatusPublished, "d": ritual.StatusReview}
	for _, rec := range got {
		if rec.SyncStatus != want[rec.ID] {
			t.Fatalf("record %s status = %s, want %s", rec.ID, rec.SyncStatus, want[rec.ID])
		}
	}
	if got[0].Get(ritual.FieldTagLine).Str() == "" || len(got[0].Steps()) != 2 {
		t.Fatalf("record a not enriched: %+v", got[0])
	}

	entries, err := audit.New(cfg.Paths.AuditLog).List(context.Background())
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != result.RunID || entries[0].PromptVariant != "ritual_details_v2" {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	if len(notifier.enrichs) != 1 || notifier.enrichs[0].Enriched != 3 {
		t.Fatalf("unexpected notifications %+v", notifier.enrichs)
	}
}

func TestEnrichLocalFailedBatchMarksError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Enrichment.BatchSize = 1
	testsupport.WriteRecords(t, cfg.Paths.LocalStore,
		testsupport.Ritual("a", "One", ritual.StatusGenerate),
		testsupport.Ritual("b", "Two", ritual.StatusGenerate),
	)
	invoker := &testsupport.FakeInvoker{FailCalls: map[int]bool{1: true}}
	runner := New(cfg, logging.NewNop(), WithInvoker(invoker), WithNotifier(&recordingNotifier{}))

	result, err := runner.Enrich(context.Background(), EnrichRequest{})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if result.Outcome.Failed != 1 || result.Outcome.Enriched != 1 {
		t.Fatalf("unexpected outcome %+v", result.Outcome)
	}
	got := testsupport.ReadRecords(t, cfg.Paths.LocalStore)
	if got[0].SyncStatus != ritual.StatusError || got[1].SyncStatus != ritual.StatusReview {
		t.Fatalf("statuses = %s, %s", got[0].SyncStatus, got[1].SyncStatus)
	}
}

func TestEnrichDryRunWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteRecords(t, cfg.Paths.LocalStore,
		testsupport.Ritual("a", "One", ritual.StatusGenerate),
		testsupport.Ritual("b", "", ritual.StatusGenerate),
	)
	before, err := os.ReadFile(cfg.Paths.LocalStore)
	if err != nil {
		t.Fatal(err)
	}
	invoker := &testsupport.FakeInvoker{}
	runner := New(cfg, logging.NewNop(), WithInvoker(invoker), WithNotifier(&recordingNotifier{}))

	result, err := runner.Enrich(context.Background(), EnrichRequest{DryRun: true})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if len(result.Planned) != 1 || result.Planned[0] != "a" || result.Outcome.Excluded != 1 {
		t.Fatalf("unexpected plan %+v", result)
	}
	if len(invoker.Payloads()) != 0 {
		t.Fatal("dry run must not call the invoker")
	}
	after, _ := os.ReadFile(cfg.Paths.LocalStore)
	if string(before) != string(after) {
		t.Fatal("dry run changed the local document")
	}
}

func TestEnrichExternalHonorsRowRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSQLiteStore(t, cfg)
	testsupport.SeedRows(t, store,
		external.Fields{"id": "r1", "Title": "One", "Sync Status": "GENERATE"},
		external.Fields{"id": "r2", "Title": "Two", "Sync Status": "GENERATE"},
		external.Fields{"id": "r3", "Title": "Three", "Sync Status": "GENERATE"},
		external.Fields{"id": "r4", "Title": "Four", "Sync Status": "GENERATE"},
	)
	store.Close()

	runner := New(cfg, logging.NewNop(), WithInvoker(&testsupport.FakeInvoker{}), WithNotifier(&recordingNotifier{}))
	result, err := runner.Enrich(context.Background(), EnrichRequest{Source: SourceExternal, Start: 2, End: 3})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if result.Outcome.Enriched != 2 {
		t.Fatalf("unexpected outcome %+v", result.Outcome)
	}

	reopened := testsupport.MustOpenSQLiteStore(t, cfg)
	rows, err := reopened.ReadAll(context.Background(), external.Query{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	statuses := make(map[string]string, len(rows))
	for _, row := range rows {
		statuses[row.Fields.StringField("id")] = row.Fields.StringField("Sync Status")
	}
	want := map[string]string{"r1": "GENERATE", "r2": "REVIEW", "r3": "REVIEW", "r4": "GENERATE"}
	for id, status := range want {
		if statuses[id] != status {
			t.Fatalf("row %s status = %q, want %q", id, statuses[id], status)
		}
	}
	for _, row := range rows {
		if row.Fields.StringField("id") == "r2" && row.Fields.StringField("Tagline") == "" {
			t.Fatal("row r2 missing generated tagline")
		}
	}
}

func TestEnrichExternalWritesOnlyGeneratedColumns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Enrichment.BatchSize = 1
	store := testsupport.MustOpenSQLiteStore(t, cfg)
	testsupport.SeedRows(t, store,
		external.Fields{"id": "r1", "Title": "One", "Sync Status": "GENERATE", "Steps": "Breathe\nReflect", "Love Types": []any{"CARE", "Quality Time"}},
		external.Fields{"id": "r2", "Title": "Two", "Sync Status": "GENERATE", "Status": "Draft", "Notes": "keep me"},
	)
	store.Close()

	invoker := &testsupport.FakeInvoker{FailCalls: map[int]bool{1: true}}
	runner := New(cfg, logging.NewNop(), WithInvoker(invoker), WithNotifier(&recordingNotifier{}))
	result, err := runner.Enrich(context.Background(), EnrichRequest{Source: SourceExternal})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if result.Outcome.Failed != 1 || result.Outcome.Enriched != 1 {
		t.Fatalf("unexpected outcome %+v", result.Outcome)
	}

	reopened := testsupport.MustOpenSQLiteStore(t, cfg)
	rows, err := reopened.ReadAll(context.Background(), external.Query{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	byID := make(map[string]external.Fields, len(rows))
	for _, row := range rows {
		byID[row.Fields.StringField("id")] = row.Fields
	}

	failed := byID["r1"]
	if got := failed.StringField("Sync Status"); got != "ERROR" {
		t.Fatalf("r1 status = %q, want ERROR", got)
	}
	if got := failed.StringField("Steps"); got != "Breathe\nReflect" {
		t.Fatalf("r1 steps rewritten to %q", got)
	}
	if loves, _ := failed["Love Types"].([]any); len(loves) != 2 {
		t.Fatalf("r1 love types rewritten to %v", failed["Love Types"])
	}
	if failed.StringField("Last Updated") == "" {
		t.Fatal("r1 missing Last Updated")
	}

	enriched := byID["r2"]
	if got := enriched.StringField("Sync Status"); got != "REVIEW" {
		t.Fatalf("r2 status = %q, want REVIEW", got)
	}
	if enriched.StringField("Tagline") == "" || enriched.StringField("Steps") == "" {
		t.Fatalf("r2 missing generated columns: %v", enriched)
	}
	if enriched.StringField("Title") != "Two" || enriched.StringField("Status") != "Draft" || enriched.StringField("Notes") != "keep me" {
		t.Fatalf("r2 lost columns the run did not generate: %v", enriched)
	}
}

func TestEnrichedUpdatesLimitColumns(t *testing.T) {
	mapper := fieldmap.Default(logging.NewNop())
	rec := testsupport.Ritual("r1", "One", ritual.StatusError)
	rec.ExternalRef = "row1"
	rec.Set(ritual.FieldSteps, ritual.ListValue([]string{"Breathe"}))

	updates, err := enrichedUpdates(mapper, enrichment.Batch{Records: []ritual.Record{rec}}, "2026-01-02T03:04:05.000Z")
	if err != nil {
		t.Fatalf("enrichedUpdates: %v", err)
	}
	if len(updates) != 1 || updates[0].ID != "row1" {
		t.Fatalf("unexpected updates %+v", updates)
	}
	if len(updates[0].Fields) != 2 || updates[0].Fields["Sync Status"] != "ERROR" || updates[0].Fields["Last Updated"] != "2026-01-02T03:04:05.000Z" {
		t.Fatalf("failed batch must write only status and timestamp, got %v", updates[0].Fields)
	}

	rec.SyncStatus = ritual.StatusReview
	batch := enrichment.Batch{
		Records:  []ritual.Record{rec},
		Enriched: true,
		Results:  []ritual.EnrichmentResult{{TagLine: "Pause", Steps: []string{"Sit"}}},
	}
	updates, err = enrichedUpdates(mapper, batch, "2026-01-02T03:04:05.000Z")
	if err != nil {
		t.Fatalf("enrichedUpdates: %v", err)
	}
	fields := updates[0].Fields
	if fields["Tagline"] != "Pause" || fields["Sync Status"] != "REVIEW" {
		t.Fatalf("unexpected fields %v", fields)
	}
	for _, column := range []string{"id", "Title", "Status"} {
		if _, ok := fields[column]; ok {
			t.Fatalf("column %q must not be written back", column)
		}
	}
}

func TestEnrichRejectsInvalidRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := New(cfg, logging.NewNop(), WithInvoker(&testsupport.FakeInvoker{}))

	cases := []EnrichRequest{
		{Source: SourceLocal, Start: 1},
		{Source: SourceExternal, Start: 3, End: 2},
		{Source: SourceExternal, Start: -1},
	}
	for _, req := range cases {
		if _, err := runner.Enrich(context.Background(), req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("request %+v: expected validation error, got %v", req, err)
		}
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	cases := []struct {
		start, end int
		want       int
	}{
		{0, 0, 5},
		{2, 0, 4},
		{0, 2, 2},
		{2, 4, 3},
		{6, 0, 0},
		{4, 99, 2},
	}
	for _, tc := range cases {
		if got := window(items, tc.start, tc.end); len(got) != tc.want {
			t.Fatalf("window(%d, %d) len = %d, want %d", tc.start, tc.end, len(got), tc.want)
		}
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: %v", err)
	}
	defer held.Unlock()

	runner := New(cfg, logging.NewNop(), WithInvoker(&testsupport.FakeInvoker{}))
	if _, err := runner.Sync(context.Background(), SyncRequest{Direction: syncengine.ToLocal}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestSyncRoundTripNotifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteRecords(t, cfg.Paths.LocalStore,
		testsupport.Ritual("a", "One", ritual.StatusPublished),
		testsupport.Ritual("b", "Two", ritual.StatusReview),
	)
	notifier := &recordingNotifier{}
	runner := New(cfg, logging.NewNop(), WithNotifier(notifier))

	report, err := runner.Sync(context.Background(), SyncRequest{Direction: syncengine.ToExternal})
	if err != nil {
		t.Fatalf("to external: %v", err)
	}
	if report.Created != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	testsupport.WriteRecords(t, cfg.Paths.LocalStore)
	report, err = runner.Sync(context.Background(), SyncRequest{Direction: syncengine.ToLocal})
	if err != nil {
		t.Fatalf("to local: %v", err)
	}
	if report.Created != 1 {
		t.Fatalf("only PUBLISHED rows should be imported, got %+v", report)
	}
	got := testsupport.ReadRecords(t, cfg.Paths.LocalStore)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected local records %+v", got)
	}
	if len(notifier.syncs) != 2 {
		t.Fatalf("expected 2 sync notifications, got %d", len(notifier.syncs))
	}
}

func TestSyncFailureNotifiesError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.Paths.LocalStore, []byte(`{"not":"array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	notifier := &recordingNotifier{}
	runner := New(cfg, logging.NewNop(), WithNotifier(notifier))

	if _, err := runner.Sync(context.Background(), SyncRequest{Direction: syncengine.ToExternal}); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if len(notifier.errs) != 1 {
		t.Fatalf("expected an error notification, got %v", notifier.errs)
	}
}

func TestParseSource(t *testing.T) {
	if s, err := ParseSource("airtable"); err != nil || s != SourceExternal {
		t.Fatalf("ParseSource(airtable) = %q, %v", s, err)
	}
	if s, err := ParseSource(""); err != nil || s != SourceLocal {
		t.Fatalf("ParseSource(\"\") = %q, %v", s, err)
	}
	if _, err := ParseSource("s3"); err == nil {
		t.Fatal("expected error")
	}
}
