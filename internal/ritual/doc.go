// Package ritual defines the record model shared by the sync engine, the field
// mapper and the enrichment processor.
//
// A Record is keyed by a stable id and carries a closed set of fields whose
// values are either a string, an ordered list of strings, or null. Status and
// the curation vocabularies (love types, relational needs, tones, modes and
// durations) are closed enumerations; free text from the external store is
// translated into them by the fieldmap package only.
//
// The JSON form of a Record is the local document schema: a flat object keyed
// by field name plus syncStatus. The external row reference is never
// serialized.
package ritual
