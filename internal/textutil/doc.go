// Package textutil formats identifiers and free text for human-facing output:
// notification titles, CLI tables and status lines.
package textutil
