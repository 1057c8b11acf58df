package preflight

import (
	"context"

	"ritualsync/internal/config"
	"ritualsync/internal/external"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check for the given config. store may be nil when it
// could not be opened; the check then reports openErr.
func RunAll(ctx context.Context, cfg *config.Config, store external.Store, openErr error) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckLocalDocument(ctx, cfg.Paths.LocalStore),
		CheckAuditLog(ctx, cfg.Paths.AuditLog),
	}

	name := "External store (" + cfg.External.Backend + ")"
	if store == nil {
		detail := "not configured"
		if openErr != nil {
			detail = openErr.Error()
		}
		results = append(results, Result{Name: name, Detail: detail})
	} else {
		results = append(results, CheckExternalStore(ctx, name, store))
	}

	results = append(results, CheckLLM(ctx, "Enrichment LLM", cfg.GetLLM()))
	return results
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
