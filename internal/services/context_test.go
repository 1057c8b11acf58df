package services_test

import (
	"context"
	"testing"

	"ritualsync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithDirection(ctx, "to_local")
	ctx = services.WithBatchIndex(ctx, 3)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if dir, ok := services.DirectionFromContext(ctx); !ok || dir != "to_local" {
		t.Fatalf("unexpected direction: %v %v", dir, ok)
	}
	if idx, ok := services.BatchIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected batch index: %v %v", idx, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDirection(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.DirectionFromContext(ctx); ok {
		t.Fatal("expected no direction value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
