// Package external defines the contract for the external tabular store that
// holds the editable ritual rows.
//
// Implementations paginate reads transparently (never more than MaxPageSize
// rows per request) and chunk writes to MaxBatchSize rows per request. Rows
// are loosely typed: field values are whatever the store's JSON decoding
// produces (strings, numbers, booleans, lists, or nil). Translation into the
// local record schema belongs to the fieldmap package.
//
// Two adapters live in subpackages: airtable talks to the Airtable REST API
// and sqlitestore keeps rows in a local SQLite staging table. MemoryStore is
// an in-process implementation used for dry runs and tests.
package external
