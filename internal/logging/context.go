package logging

import (
	"context"
	"log/slog"

	"ritualsync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for CLI run identifiers.
	FieldRunID = "run_id"
	// FieldDirection is the standardized structured logging key for sync directions.
	FieldDirection = "direction"
	// FieldBatchIndex is the standardized structured logging key for 1-based batch indexes.
	FieldBatchIndex = "batch_index"
	// FieldRecordID is the standardized structured logging key for ritual record ids.
	FieldRecordID = "record_id"
	// FieldRecordIDs lists the record ids affected by a batch-scoped event.
	FieldRecordIDs = "record_ids"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries services.ErrorKind for failures.
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if dir, ok := services.DirectionFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDirection, dir))
	}
	if idx, ok := services.BatchIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldBatchIndex, idx))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
