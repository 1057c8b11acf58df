// Package syncengine reconciles the local ritual document with the external
// store.
//
// Sync to_local treats the external store as the source of truth: rows
// (optionally filtered by sync status) are merged field-by-field into the
// local records with the same id, unmatched rows are appended and unmatched
// local records are kept. Sync to_external is the mirror image: every local
// record becomes an update of the row with the same id or a new row. Neither
// direction deletes anything.
//
// Record-scoped problems (missing id, values the mapper rejects) are logged
// and skipped. A failed write batch is logged with its record ids and the
// pass continues with the next batch.
package syncengine
