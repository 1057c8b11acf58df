// Package enrichment fills in ritual records with generated content.
//
// Processor.Run selects eligible records, splits them into contiguous batches
// and calls an Invoker once per batch. A batch is all-or-nothing: either every
// valid record in it receives its positional result and moves to REVIEW, or
// none does and they take the configured failure status. Successful results
// are written to the audit log before they are merged. Records without a
// title are excluded from the call and keep their status.
//
// Batches run strictly in sequence with a flat pacing delay between them. An
// optional Committer persists each batch; when it fails the batch's records
// are restored to their pre-batch state.
package enrichment
