// Package sqlitestore implements external.Store on a local SQLite staging
// table.
//
// Each row keeps its columns as a JSON object, so the staging table accepts
// the same loosely typed fields the Airtable adapter does. Equality filters
// are evaluated with json_extract; raw Airtable formulas are rejected. The
// database runs in WAL mode and writes retry briefly on SQLITE_BUSY so a
// second process reading the staging table does not fail a sync.
package sqlitestore
