// Package stores journals tuning runs to SQLite.
//
// The journal records every run with its outcome, the runtime events it
// emitted and the rows of diagnostic scans. It is written during a run and
// read by the history command; patch state is never restored from it.
package stores
