package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	directionKey  contextKey = "direction"
	batchIndexKey contextKey = "batch_index"
)

// WithRunID annotates context with the identifier of the current CLI run.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDirection annotates context with the active sync direction.
func WithDirection(ctx context.Context, direction string) context.Context {
	if direction == "" {
		return ctx
	}
	return context.WithValue(ctx, directionKey, direction)
}

// DirectionFromContext returns the sync direction if present.
func DirectionFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(directionKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithBatchIndex annotates context with the 1-based enrichment batch index.
func WithBatchIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, batchIndexKey, index)
}

// BatchIndexFromContext extracts the batch index if present.
func BatchIndexFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(batchIndexKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}
