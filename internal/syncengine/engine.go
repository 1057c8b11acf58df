package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ritualsync/internal/external"
	"ritualsync/internal/fieldmap"
	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

// Direction selects the source of truth.
type Direction string

const (
	ToExternal Direction = "to_external"
	ToLocal    Direction = "to_local"
)

// ParseDirection accepts the canonical names and the aliases to_airtable and
// to_json.
func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "to_external", "to_airtable", "external", "airtable":
		return ToExternal, nil
	case "to_local", "to_json", "local", "json":
		return ToLocal, nil
	default:
		return "", services.Wrap(services.ErrValidation, "sync", "parse direction",
			fmt.Sprintf("unknown direction %q (want to_external or to_local)", value), nil)
	}
}

// LocalStore is the local document.
type LocalStore interface {
	Load(ctx context.Context) ([]ritual.Record, error)
	Save(ctx context.Context, records []ritual.Record) error
}

// Options configure an Engine.
type Options struct {
	// PublishStatus filters external rows for to_local. Empty reads every row.
	PublishStatus ritual.Status
	// BatchSize bounds rows per write request. Defaults to external.MaxBatchSize.
	BatchSize int
	// DryRun computes the report without writing either side.
	DryRun bool
}

// Counts pairs a local and an external figure.
type Counts struct {
	Local    int `json:"local"`
	External int `json:"external"`
}

// Report summarizes one pass.
type Report struct {
	Direction     Direction `json:"direction"`
	Loaded        Counts    `json:"loaded"`
	Created       int       `json:"created"`
	Updated       int       `json:"updated"`
	Retained      int       `json:"retained"`
	Skipped       int       `json:"skipped"`
	FailedBatches int       `json:"failedBatches"`
	FailedIDs     []string  `json:"failedIds,omitempty"`
	SkippedIDs    []string  `json:"skippedIds,omitempty"`
	DryRun        bool      `json:"dryRun,omitempty"`
}

// Engine runs sync passes.
type Engine struct {
	local  LocalStore
	remote external.Store
	mapper *fieldmap.Mapper
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New wires an engine.
func New(local LocalStore, remote external.Store, mapper *fieldmap.Mapper, opts Options, logger *slog.Logger) *Engine {
	if opts.BatchSize <= 0 || opts.BatchSize > external.MaxBatchSize {
		opts.BatchSize = external.MaxBatchSize
	}
	return &Engine{
		local:  local,
		remote: remote,
		mapper: mapper,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "sync"),
		now:    time.Now,
	}
}

// Sync runs one pass in the given direction. Returned errors are fatal to the
// pass (a side could not be loaded or the local save failed); partial write
// failures are reported in Report.
func (e *Engine) Sync(ctx context.Context, dir Direction) (Report, error) {
	ctx = services.WithDirection(ctx, string(dir))
	switch dir {
	case ToLocal:
		return e.syncToLocal(ctx)
	case ToExternal:
		return e.syncToExternal(ctx)
	default:
		return Report{}, services.Wrap(services.ErrValidation, "sync", "run", fmt.Sprintf("unknown direction %q", dir), nil)
	}
}

func (e *Engine) syncToLocal(ctx context.Context) (Report, error) {
	logger := logging.WithContext(ctx, e.logger)
	report := Report{Direction: ToLocal, DryRun: e.opts.DryRun}

	query := external.Query{}
	if e.opts.PublishStatus != "" {
		query.Filter = &external.Equals{Field: fieldmap.ColumnSyncStatus, Value: string(e.opts.PublishStatus)}
	}
	rows, err := e.remote.ReadAll(ctx, query)
	if err != nil {
		return report, fmt.Errorf("read external rows: %w", err)
	}
	records, err := e.local.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load local records: %w", err)
	}
	report.Loaded = Counts{Local: len(records), External: len(rows)}

	index := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, dup := index[rec.ID]; !dup {
			index[rec.ID] = i
		}
	}
	matched := make(map[int]bool, len(rows))
	appended := make(map[string]int)

	for _, row := range rows {
		incoming, err := e.mapper.RecordFromRow(row)
		if err != nil {
			if !services.IsRecordScoped(err) {
				return report, fmt.Errorf("decode external row %s: %w", row.ID, err)
			}
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, row.ID)
			logging.WarnWithContext(logger, "skipping external row", "sync_row_skipped",
				logging.String("row_id", row.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
				logging.String(logging.FieldErrorHint, "give the row an id in the external store"),
				logging.String(logging.FieldImpact, "row not imported"),
			)
			continue
		}
		if i, ok := index[incoming.ID]; ok {
			if matched[i] {
				logging.WarnWithContext(logger, "duplicate external id merged into first occurrence", "sync_duplicate_external_id",
					logging.String(logging.FieldRecordID, incoming.ID),
					logging.String("row_id", row.ID),
					logging.String(logging.FieldErrorHint, "remove the duplicate row in the external store"),
					logging.String(logging.FieldImpact, "later row overwrites fields of the earlier one"),
				)
			} else {
				report.Updated++
			}
			matched[i] = true
			e.merge(&records[i], incoming)
			continue
		}
		if j, ok := appended[incoming.ID]; ok {
			logging.WarnWithContext(logger, "duplicate external id merged into first occurrence", "sync_duplicate_external_id",
				logging.String(logging.FieldRecordID, incoming.ID),
				logging.String("row_id", row.ID),
				logging.String(logging.FieldErrorHint, "remove the duplicate row in the external store"),
				logging.String(logging.FieldImpact, "later row overwrites fields of the earlier one"),
			)
			e.merge(&records[j], incoming)
			continue
		}
		incoming.ExternalRef = ""
		records = append(records, incoming)
		appended[incoming.ID] = len(records) - 1
		report.Created++
	}
	report.Retained = report.Loaded.Local - len(matched)

	for i := range records {
		records[i].ExternalRef = ""
	}
	if e.opts.DryRun {
		logger.Info("dry run: local document not written", logging.Int("records", len(records)))
		return report, nil
	}
	if err := e.local.Save(ctx, records); err != nil {
		return report, fmt.Errorf("save local records: %w", err)
	}
	logger.Info("sync to local completed",
		logging.Int("external_rows", report.Loaded.External),
		logging.Int("updated", report.Updated),
		logging.Int("created", report.Created),
		logging.Int("retained", report.Retained),
		logging.Int("skipped", report.Skipped),
	)
	return report, nil
}

// merge overwrites the mapped fields present on incoming, plus sync status.
func (e *Engine) merge(dst *ritual.Record, incoming ritual.Record) {
	for _, f := range e.mapper.Fields() {
		if f == ritual.FieldID {
			continue
		}
		if incoming.Has(f) {
			dst.Set(f, incoming.Get(f))
		}
	}
	if incoming.SyncStatus != "" {
		dst.SyncStatus = incoming.SyncStatus
	}
}

type pending struct {
	id     string
	rowID  string
	fields external.Fields
}

func (e *Engine) syncToExternal(ctx context.Context) (Report, error) {
	logger := logging.WithContext(ctx, e.logger)
	report := Report{Direction: ToExternal, DryRun: e.opts.DryRun}

	records, err := e.local.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load local records: %w", err)
	}
	rows, err := e.remote.ReadAll(ctx, external.Query{})
	if err != nil {
		return report, fmt.Errorf("read external rows: %w", err)
	}
	report.Loaded = Counts{Local: len(records), External: len(rows)}

	idColumn, _ := e.mapper.ExternalName(ritual.FieldID)
	rowIndex := make(map[string]string, len(rows))
	for _, row := range rows {
		id := row.Fields.StringField(idColumn)
		if id == "" {
			continue
		}
		if _, dup := rowIndex[id]; dup {
			logging.WarnWithContext(logger, "duplicate external id, updating first row only", "sync_duplicate_external_id",
				logging.String(logging.FieldRecordID, id),
				logging.String("row_id", row.ID),
				logging.String(logging.FieldErrorHint, "remove the duplicate row in the external store"),
				logging.String(logging.FieldImpact, "later row left unchanged"),
			)
			continue
		}
		rowIndex[id] = row.ID
	}

	stamp := fieldmap.LastUpdated(e.now())
	var creates, updates []pending
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			report.Skipped++
			reason := "record has no id"
			if rec.ID != "" {
				reason = "duplicate local id"
			}
			logging.WarnWithContext(logger, "skipping local record", "sync_record_skipped",
				logging.String(logging.FieldRecordID, rec.ID),
				logging.String("title", rec.Title()),
				logging.String("reason", reason),
				logging.String(logging.FieldErrorKind, services.ErrorKind(services.ErrValidation)),
				logging.String(logging.FieldErrorHint, "give every local record a unique id"),
				logging.String(logging.FieldImpact, "record not exported"),
			)
			continue
		}
		seen[rec.ID] = true
		fields, err := e.mapper.RecordToExternal(rec)
		if err != nil {
			if !services.IsRecordScoped(err) {
				return report, fmt.Errorf("encode record %s: %w", rec.ID, err)
			}
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, rec.ID)
			logging.WarnWithContext(logger, "skipping local record", "sync_record_skipped",
				logging.String(logging.FieldRecordID, rec.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
				logging.String(logging.FieldErrorHint, "correct the record's vocabulary values"),
				logging.String(logging.FieldImpact, "record not exported"),
			)
			continue
		}
		fields[fieldmap.ColumnLastUpdated] = stamp
		if rowID, ok := rowIndex[rec.ID]; ok {
			updates = append(updates, pending{id: rec.ID, rowID: rowID, fields: fields})
		} else {
			creates = append(creates, pending{id: rec.ID, fields: fields})
		}
	}

	if e.opts.DryRun {
		report.Updated = len(updates)
		report.Created = len(creates)
		logger.Info("dry run: external store not written",
			logging.Int("would_update", report.Updated),
			logging.Int("would_create", report.Created),
		)
		return report, nil
	}

	for bi, chunk := range external.Chunk(updates, e.opts.BatchSize) {
		batch := make([]external.RowUpdate, len(chunk))
		for k, p := range chunk {
			batch[k] = external.RowUpdate{ID: p.rowID, Fields: p.fields}
		}
		if err := e.remote.BatchUpdate(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			e.batchFailed(ctx, &report, "update", bi+1, chunk, err)
			continue
		}
		report.Updated += len(chunk)
	}
	for bi, chunk := range external.Chunk(creates, e.opts.BatchSize) {
		batch := make([]external.Fields, len(chunk))
		for k, p := range chunk {
			batch[k] = p.fields
		}
		if err := e.remote.BatchCreate(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			e.batchFailed(ctx, &report, "create", bi+1, chunk, err)
			continue
		}
		report.Created += len(chunk)
	}
	logger.Info("sync to external completed",
		logging.Int("local_records", report.Loaded.Local),
		logging.Int("updated", report.Updated),
		logging.Int("created", report.Created),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed_batches", report.FailedBatches),
	)
	return report, nil
}

func (e *Engine) batchFailed(ctx context.Context, report *Report, op string, index int, chunk []pending, err error) {
	ids := make([]string, len(chunk))
	for k, p := range chunk {
		ids[k] = p.id
	}
	report.FailedBatches++
	report.FailedIDs = append(report.FailedIDs, ids...)
	logging.ErrorWithContext(logging.WithContext(services.WithBatchIndex(ctx, index), e.logger), "external batch failed", "sync_batch_failed",
		logging.String("operation", op),
		logging.Strings(logging.FieldRecordIDs, ids),
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
		logging.String(logging.FieldErrorHint, "rerun the sync once the external store accepts writes"),
	)
}
