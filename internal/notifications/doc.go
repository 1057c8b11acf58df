// Package notifications delivers run outcomes via ntfy.
//
// NewService returns an ntfy-backed Service when a topic is configured and a
// no-op otherwise. Each event family (sync, enrichment, errors) can be muted
// independently in config.toml. Delivery failures are returned to the caller,
// which logs them without failing the run.
package notifications
