// Package preflight provides readiness checks for the stores and services
// ritualsync depends on.
//
// The CLI "ritualsync check" and "ritualsync status" commands run RunAll and
// render each Result. Checks never mutate anything: the external store is
// probed with a single-row read and the local files are only parsed.
package preflight
