// Package services defines shared utilities consumed by the sync engine, the
// enrichment processor and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, sync directions, batch indexes and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     record-scoped (validation, decode), batch-scoped (transport) or fatal
//     (configuration).
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across components.
package services
