// Package config loads, normalizes, and validates ritualsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AIRTABLE_TOKEN and OPENROUTER_API_KEY. The Config type is handed explicitly
// to the sync engine and the enrichment processor; core logic never reads
// process environment on its own.
//
// Validation failures are tagged as configuration errors so the CLI aborts
// before any record is touched.
package config
