package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelReplacer = strings.NewReplacer("_", " ", "-", " ")

// Label turns a machine identifier such as "to_external" or "PRESENCE_AND_QUALITY_TIME"
// into title case words ("To External", "Presence And Quality Time").
func Label(value string) string {
	words := strings.Fields(labelReplacer.Replace(strings.TrimSpace(value)))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(strings.Join(words, " ")))
}

// Truncate shortens value to at most limit runes, marking the cut with an
// ellipsis. Newlines are flattened to spaces.
func Truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	if limit == 1 {
		return "…"
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// Plural returns singular when n is 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
