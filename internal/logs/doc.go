// Package logs reads the ritualsync log file for the `ritualsync logs`
// command.
//
// Tail returns the last N lines (or everything after a byte offset) and can
// wait for new lines in follow mode. A Match string narrows output to lines
// containing it, which is how a single run is isolated by its run id.
package logs
