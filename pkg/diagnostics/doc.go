// Package diagnostics implements the one-shot stat scanner.
//
// The scanner walks the modules a host exposes, records which target modules
// are loaded, and for each keyword group lists the matching types and the
// members whose names contain one of the group's tokens. The report is
// written as a plain log file and, when a sink is configured, as scan
// records in the run journal. It exists to confirm member names for a new
// host build before a profile is written against them.
package diagnostics
