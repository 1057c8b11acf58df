// Package pipeline wires configuration, stores, the sync engine and the
// enrichment processor into the runs the CLI exposes.
//
// Every run holds an exclusive file lock under the data directory so two
// invocations never write the same documents concurrently, and carries a
// fresh run id in its context for log correlation. Completion and failure
// are pushed through the notifications service when one is configured.
package pipeline
