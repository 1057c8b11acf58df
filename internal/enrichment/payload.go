package enrichment

import (
	"fmt"
	"strings"

	"ritualsync/internal/ritual"
)

// seedFields are sent alongside the title when non-empty, in this order.
var seedFields = []ritual.Field{
	ritual.FieldDescription,
	ritual.FieldLoveTypes,
	ritual.FieldRitualMode,
	ritual.FieldRelationalNeeds,
	ritual.FieldTimeTaken,
}

// BuildPayload renders the user prompt for one batch. Every record gets a
// numbered block with its title; other seed fields appear only when set.
func BuildPayload(records []ritual.Record) string {
	var b strings.Builder
	b.WriteString("Ritual Data:\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "\nRitual %d:\n", i+1)
		fmt.Fprintf(&b, "  title: %s\n", rec.Title())
		for _, f := range seedFields {
			v := rec.Get(f)
			if v.IsEmpty() {
				continue
			}
			fmt.Fprintf(&b, "  %s: %s\n", f, strings.TrimSpace(v.String()))
		}
	}
	return b.String()
}
