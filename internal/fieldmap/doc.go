// Package fieldmap translates between local ritual records and external rows.
//
// The mapping is a static table of (local field, external column) pairs with
// the inverse derived once at construction. Writes toward the external store
// are strict: a vocabulary value outside its closed set fails the record.
// Reads from the external store are lenient: malformed steps decode to an
// empty list and unknown vocabulary terms are dropped, each with a warning.
//
// Steps travel as a JSON array of strings encoded into a single text cell,
// indented by two spaces with non-ASCII characters emitted verbatim.
package fieldmap
