package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ritualsync/internal/enrichment"
	"ritualsync/internal/enrichment/prompts"
	"ritualsync/internal/external"
	"ritualsync/internal/external/backend"
	"ritualsync/internal/fieldmap"
	"ritualsync/internal/localstore"
	"ritualsync/internal/logging"
	"ritualsync/internal/notifications"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

// Source selects where enrichment reads and commits records.
type Source string

const (
	SourceLocal    Source = "local"
	SourceExternal Source = "external"
)

// ParseSource accepts local/json and external/airtable.
func ParseSource(value string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "local", "json":
		return SourceLocal, nil
	case "external", "airtable":
		return SourceExternal, nil
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "parse source", fmt.Sprintf("unknown source %q (want local or external)", value), nil)
	}
}

// EnrichRequest configures one enrichment run. Zero values fall back to the
// configuration.
type EnrichRequest struct {
	Source    Source
	BatchSize int
	// Start and End bound the external rows considered, 1-based and
	// inclusive. Zero leaves that side open. Only valid for SourceExternal.
	Start     int
	End       int
	Selection string
	// PromptVariant overrides enrichment.prompt_variant.
	PromptVariant string
	// DryRun reports the planned batches without generating or writing.
	DryRun bool
}

// EnrichResult summarizes an enrichment run.
type EnrichResult struct {
	RunID    string             `json:"runId"`
	Source   Source             `json:"source"`
	Variant  string             `json:"promptVariant"`
	DryRun   bool               `json:"dryRun,omitempty"`
	Planned  []string           `json:"plannedIds,omitempty"`
	Outcome  enrichment.Outcome `json:"-"`
	Duration time.Duration      `json:"-"`
}

// Enrich runs the batch processor against the requested source under the run
// lock. Cancellation returns the context error with completed batches kept.
func (r *Runner) Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error) {
	if req.Source == "" {
		req.Source = SourceLocal
	}
	if err := validateWindow(req); err != nil {
		return EnrichResult{Source: req.Source}, err
	}
	opts, err := r.processorOptions(req)
	if err != nil {
		return EnrichResult{Source: req.Source}, err
	}

	ctx, release, err := r.begin(ctx)
	if err != nil {
		return EnrichResult{Source: req.Source}, err
	}
	defer release()

	runID, _ := services.RunIDFromContext(ctx)
	result := EnrichResult{RunID: runID, Source: req.Source, Variant: opts.PromptVariant, DryRun: req.DryRun}
	started := r.now()

	switch req.Source {
	case SourceExternal:
		err = r.enrichExternal(ctx, req, opts, &result)
	default:
		err = r.enrichLocal(ctx, req, opts, &result)
	}
	result.Duration = r.now().Sub(started)
	if err != nil {
		r.notifyFailure(ctx, "enrichment", err)
		return result, err
	}
	if !req.DryRun {
		out := result.Outcome
		summary := notifications.EnrichmentSummary{
			Source:        string(req.Source),
			Enriched:      out.Enriched,
			Failed:        out.Failed,
			Excluded:      out.Excluded,
			FailedBatches: out.FailedBatches,
			TotalTokens:   out.Usage.TotalTokens,
			CostUSD:       out.Usage.CostUSD,
			Duration:      result.Duration,
		}
		if nerr := r.notifier.NotifyEnrichmentCompleted(ctx, summary); nerr != nil {
			r.notificationFailed(ctx, nerr)
		}
	}
	return result, nil
}

func validateWindow(req EnrichRequest) error {
	if req.Start == 0 && req.End == 0 {
		return nil
	}
	if req.Source != SourceExternal {
		return services.Wrap(services.ErrValidation, "pipeline", "enrich", "--start/--end apply to the external source only", nil)
	}
	if req.Start < 0 || req.End < 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "enrich", "row range must be positive", nil)
	}
	if req.Start > 0 && req.End > 0 && req.Start > req.End {
		return services.Wrap(services.ErrValidation, "pipeline", "enrich", fmt.Sprintf("start %d is after end %d", req.Start, req.End), nil)
	}
	return nil
}

// window returns items[start-1:end] clamped to the slice.
func window[T any](items []T, start, end int) []T {
	lo := 0
	if start > 0 {
		lo = start - 1
	}
	hi := len(items)
	if end > 0 && end < hi {
		hi = end
	}
	if lo >= hi {
		return nil
	}
	return items[lo:hi]
}

func (r *Runner) processorOptions(req EnrichRequest) (enrichment.Options, error) {
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = r.cfg.Enrichment.BatchSize
	}
	selection := req.Selection
	if strings.TrimSpace(selection) == "" {
		selection = r.cfg.Enrichment.Selection
	}
	selector, err := enrichment.SelectorFor(selection)
	if err != nil {
		return enrichment.Options{}, services.Wrap(services.ErrValidation, "pipeline", "enrich", "", err)
	}
	variant := req.PromptVariant
	if strings.TrimSpace(variant) == "" {
		variant = r.cfg.Enrichment.PromptVariant
	}
	override := r.cfg.Enrichment.SystemPromptPath
	if strings.TrimSpace(req.PromptVariant) != "" {
		override = ""
	}
	text, name, err := prompts.Resolve(variant, override)
	if err != nil {
		return enrichment.Options{}, err
	}
	return enrichment.Options{
		BatchSize:     batchSize,
		Selector:      selector,
		FailureStatus: ritual.Status(r.cfg.Enrichment.FailureStatus),
		Pacing:        time.Duration(r.cfg.Enrichment.PacingMillis) * time.Millisecond,
		SystemPrompt:  text,
		PromptVariant: name,
	}, nil
}

func (r *Runner) run(ctx context.Context, records []ritual.Record, opts enrichment.Options, req EnrichRequest, result *EnrichResult) error {
	if req.DryRun {
		result.Outcome, result.Planned = plan(records, opts)
		logging.WithContext(ctx, r.logger).Info("dry run: no generation calls made",
			logging.Int("selected", result.Outcome.Selected),
			logging.Int("batches", result.Outcome.Batches),
		)
		return nil
	}
	invoker, err := r.enrichmentInvoker()
	if err != nil {
		return err
	}
	processor := enrichment.NewProcessor(invoker, r.auditLog(), r.logger)
	outcome, err := processor.Run(ctx, records, opts)
	result.Outcome = outcome
	return err
}

// plan mirrors Processor.Run's selection and batching without side effects.
func plan(records []ritual.Record, opts enrichment.Options) (enrichment.Outcome, []string) {
	out := enrichment.Outcome{Records: records}
	var ids []string
	for _, rec := range records {
		if !opts.Selector(rec) {
			continue
		}
		out.Selected++
		if rec.Title() == "" {
			out.Excluded++
			out.ExcludedIDs = append(out.ExcludedIDs, rec.ID)
			continue
		}
		ids = append(ids, rec.ID)
	}
	out.Batches = len(external.Chunk(make([]struct{}, out.Selected), opts.BatchSize))
	return out, ids
}

func (r *Runner) enrichLocal(ctx context.Context, req EnrichRequest, opts enrichment.Options, result *EnrichResult) error {
	store := localstore.New(r.cfg.Paths.LocalStore, r.logger)
	records, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !req.DryRun {
		opts.Commit = func(ctx context.Context, batch enrichment.Batch) error {
			return store.Save(ctx, batch.All)
		}
	}
	return r.run(ctx, records, opts, req, result)
}

func (r *Runner) enrichExternal(ctx context.Context, req EnrichRequest, opts enrichment.Options, result *EnrichResult) error {
	logger := logging.WithContext(ctx, r.logger)
	handle, err := backend.Open(r.cfg, r.logger)
	if err != nil {
		return err
	}
	defer handle.Close()

	rows, err := handle.ReadAll(ctx, external.Query{})
	if err != nil {
		return fmt.Errorf("read external rows: %w", err)
	}
	total := len(rows)
	rows = window(rows, req.Start, req.End)
	logger.Info("external rows loaded",
		logging.Int("rows", total),
		logging.Int("in_range", len(rows)),
		logging.Int("start", req.Start),
		logging.Int("end", req.End),
	)

	mapper := fieldmap.Default(r.logger)
	records := make([]ritual.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := mapper.RecordFromRow(row)
		if err != nil {
			logging.WarnWithContext(logger, "skipping external row", "enrich_row_skipped",
				logging.String("row_id", row.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
				logging.String(logging.FieldErrorHint, "give the row an id in the external store"),
				logging.String(logging.FieldImpact, "row not enriched"),
			)
			continue
		}
		records = append(records, rec)
	}

	if !req.DryRun {
		opts.Commit = func(ctx context.Context, batch enrichment.Batch) error {
			updates, err := enrichedUpdates(mapper, batch, fieldmap.LastUpdated(r.now()))
			if err != nil {
				return err
			}
			return handle.BatchUpdate(ctx, updates)
		}
	}
	return r.run(ctx, records, opts, req, result)
}

// enrichedUpdates writes back only what the batch changed: the generated
// columns when the call succeeded, plus sync status and timestamp. Columns
// the run did not produce stay untouched in the external store.
func enrichedUpdates(mapper *fieldmap.Mapper, batch enrichment.Batch, stamp string) ([]external.RowUpdate, error) {
	updates := make([]external.RowUpdate, 0, len(batch.Records))
	for k, rec := range batch.Records {
		fields := external.Fields{}
		if batch.Enriched && k < len(batch.Results) {
			generated, err := mapper.ToExternal(batch.Results[k].Fields())
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.ID, err)
			}
			fields = generated
		}
		fields[fieldmap.ColumnSyncStatus] = string(rec.SyncStatus)
		fields[fieldmap.ColumnLastUpdated] = stamp
		updates = append(updates, external.RowUpdate{ID: rec.ExternalRef, Fields: fields})
	}
	return updates, nil
}
