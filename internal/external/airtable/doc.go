// Package airtable implements external.Store against the Airtable REST API.
//
// Reads follow the offset cursor until the API stops returning one. Writes are
// chunked to ten rows per request with typecast enabled so select options are
// matched by name. Every request waits for the client's minimum interval
// (derived from requests_per_second) and transient failures (408, 429, 5xx,
// network timeouts) are retried with exponential backoff, honoring
// Retry-After when present.
package airtable
