package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ritualsync/internal/external"
	"ritualsync/internal/logging"
	"ritualsync/internal/ritual"
	"ritualsync/internal/services"
)

// DefaultBatchSize bounds records per generation call.
const DefaultBatchSize = 10

// AuditAppender stores one entry per generation call that returned results.
type AuditAppender interface {
	Append(ctx context.Context, entry ritual.AuditEntry) (ritual.AuditEntry, error)
}

// Batch is handed to a Committer after a batch's records were updated.
type Batch struct {
	// Index is 1-based.
	Index int
	// Records are the batch's valid records after merge or failure marking.
	Records []ritual.Record
	// All is the full record set, including the batch, in input order.
	All []ritual.Record
	// Enriched reports whether the generation call succeeded.
	Enriched bool
	// Results align with Records and are set only when Enriched.
	Results []ritual.EnrichmentResult
}

// Committer persists one batch. A failure rolls the batch back in memory.
type Committer func(ctx context.Context, batch Batch) error

// Options configure one Run.
type Options struct {
	BatchSize     int
	Selector      Selector
	FailureStatus ritual.Status
	Pacing        time.Duration
	SystemPrompt  string
	PromptVariant string
	Commit        Committer
}

// Outcome summarizes a Run. Records holds every input record, in order, with
// the run's changes applied.
type Outcome struct {
	Records       []ritual.Record
	Selected      int
	Enriched      int
	Excluded      int
	Failed        int
	Batches       int
	FailedBatches int
	Usage         ritual.Usage
	EnrichedIDs   []string
	FailedIDs     []string
	ExcludedIDs   []string
}

// Processor runs enrichment batches.
type Processor struct {
	invoker Invoker
	audit   AuditAppender
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewProcessor wires an invoker and audit log. audit may be nil.
func NewProcessor(invoker Invoker, audit AuditAppender, logger *slog.Logger) *Processor {
	return &Processor{
		invoker: invoker,
		audit:   audit,
		logger:  logging.NewComponentLogger(logger, "enrichment"),
		sleep:   sleepWithContext,
	}
}

// Run enriches the eligible subset of records. Per-batch failures are logged
// and absorbed; only context cancellation or invalid options end the run
// early, in which case the returned Outcome still reflects completed batches.
func (p *Processor) Run(ctx context.Context, records []ritual.Record, opts Options) (Outcome, error) {
	if p.invoker == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "enrichment", "run", "invoker required", nil)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Selector == nil {
		opts.Selector = SelectStatus(ritual.StatusGenerate)
	}
	if opts.FailureStatus == "" {
		opts.FailureStatus = ritual.StatusError
	}
	if !opts.FailureStatus.Valid() {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "enrichment", "run", fmt.Sprintf("invalid failure status %q", opts.FailureStatus), nil)
	}

	all := make([]ritual.Record, len(records))
	for i, rec := range records {
		all[i] = rec.Clone()
	}
	out := Outcome{Records: all}

	var selected []int
	for i, rec := range all {
		if opts.Selector(rec) {
			selected = append(selected, i)
		}
	}
	out.Selected = len(selected)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("enrichment run starting",
		logging.Int("records", len(all)),
		logging.Int("selected", len(selected)),
		logging.Int("batch_size", opts.BatchSize),
		logging.String("prompt_variant", opts.PromptVariant),
	)

	batches := external.Chunk(selected, opts.BatchSize)
	for bi, indexes := range batches {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Batches++
		p.runBatch(ctx, bi+1, indexes, all, opts, &out)
		if bi < len(batches)-1 && opts.Pacing > 0 {
			if err := p.sleep(ctx, opts.Pacing); err != nil {
				return out, err
			}
		}
	}

	logger.Info("enrichment run completed",
		logging.Int("batches", out.Batches),
		logging.Int("enriched", out.Enriched),
		logging.Int("failed", out.Failed),
		logging.Int("excluded", out.Excluded),
		logging.Int("total_tokens", out.Usage.TotalTokens),
		logging.Float64("cost_usd", out.Usage.CostUSD),
	)
	return out, nil
}

func (p *Processor) runBatch(ctx context.Context, index int, indexes []int, all []ritual.Record, opts Options, out *Outcome) {
	ctx = services.WithBatchIndex(ctx, index)
	logger := logging.WithContext(ctx, p.logger)

	var valid []int
	for _, i := range indexes {
		if all[i].Title() == "" {
			out.Excluded++
			out.ExcludedIDs = append(out.ExcludedIDs, all[i].ID)
			logging.WarnWithContext(logger, "record excluded from batch: missing title", "enrichment_record_excluded",
				logging.String(logging.FieldRecordID, all[i].ID),
				logging.String(logging.FieldErrorKind, services.ErrorKind(services.ErrValidation)),
				logging.String(logging.FieldErrorHint, "add a title so the record can be enriched"),
				logging.String(logging.FieldImpact, "record keeps its status until the next run"),
			)
			continue
		}
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		logger.Info("batch skipped: no records with a title", logging.Int("excluded", len(indexes)))
		return
	}

	snapshot := make([]ritual.Record, len(valid))
	batchRecords := make([]ritual.Record, len(valid))
	ids := make([]string, len(valid))
	for k, i := range valid {
		snapshot[k] = all[i].Clone()
		batchRecords[k] = all[i]
		ids[k] = all[i].ID
	}

	enriched := false
	results, usage, err := p.invoker.Generate(ctx, opts.SystemPrompt, BuildPayload(batchRecords))
	if err == nil && len(results) != len(valid) {
		err = services.Wrap(services.ErrDecode, "enrichment", "generate",
			fmt.Sprintf("expected %d results, got %d", len(valid), len(results)), nil)
		p.auditMismatch(ctx, logger, index, ids, opts, usage, results, err)
	} else if err == nil && p.audit != nil {
		_, err = p.audit.Append(ctx, ritual.AuditEntry{
			BatchIndex:    index,
			BatchSize:     len(valid),
			PromptVariant: opts.PromptVariant,
			Usage:         usage,
			RecordIDs:     ids,
			Results:       results,
		})
		if err != nil {
			err = fmt.Errorf("append audit entry: %w", err)
		}
	}
	if err == nil {
		for k, i := range valid {
			results[k].Apply(&all[i])
			all[i].SyncStatus = ritual.StatusReview
		}
		enriched = true
	} else {
		for _, i := range valid {
			all[i].SyncStatus = opts.FailureStatus
		}
		logging.ErrorWithContext(logger, "enrichment batch failed", "enrichment_batch_failed",
			logging.Strings(logging.FieldRecordIDs, ids),
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
			logging.String("failure_status", string(opts.FailureStatus)),
			logging.String(logging.FieldErrorHint, "check LLM credentials, model and rate limits, then rerun"),
		)
	}

	if opts.Commit != nil {
		committed := make([]ritual.Record, len(valid))
		for k, i := range valid {
			committed[k] = all[i].Clone()
		}
		batch := Batch{Index: index, Records: committed, All: all, Enriched: enriched}
		if enriched {
			batch.Results = results
		}
		if cerr := opts.Commit(ctx, batch); cerr != nil {
			for k, i := range valid {
				all[i] = snapshot[k]
			}
			logging.ErrorWithContext(logger, "batch commit failed, changes rolled back", "enrichment_commit_failed",
				logging.Strings(logging.FieldRecordIDs, ids),
				logging.Error(cerr),
				logging.String(logging.FieldErrorKind, services.ErrorKind(cerr)),
				logging.String(logging.FieldErrorHint, "check the target store, then rerun to retry these records"),
			)
			out.FailedBatches++
			out.Failed += len(valid)
			out.FailedIDs = append(out.FailedIDs, ids...)
			if enriched {
				out.Usage = out.Usage.Add(usage)
			}
			return
		}
	}

	if enriched {
		out.Enriched += len(valid)
		out.EnrichedIDs = append(out.EnrichedIDs, ids...)
		out.Usage = out.Usage.Add(usage)
		logger.Info("enrichment batch completed",
			logging.Strings(logging.FieldRecordIDs, ids),
			logging.Int("total_tokens", usage.TotalTokens),
		)
		return
	}
	out.FailedBatches++
	out.Failed += len(valid)
	out.FailedIDs = append(out.FailedIDs, ids...)
}

// auditMismatch records a response whose result count did not match the
// batch. The results are never merged.
func (p *Processor) auditMismatch(ctx context.Context, logger *slog.Logger, index int, ids []string, opts Options, usage ritual.Usage, results []ritual.EnrichmentResult, cause error) {
	if p.audit == nil {
		return
	}
	_, err := p.audit.Append(ctx, ritual.AuditEntry{
		BatchIndex:    index,
		BatchSize:     len(ids),
		PromptVariant: opts.PromptVariant,
		Usage:         usage,
		RecordIDs:     ids,
		Results:       results,
		Error:         cause.Error(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "audit entry for rejected response not written", "enrichment_audit_failed",
			logging.Strings(logging.FieldRecordIDs, ids),
			logging.Error(err),
			logging.String(logging.FieldImpact, "rejected response is not in the audit log"),
		)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
