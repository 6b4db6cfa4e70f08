// Package sqlite persists scan results in a SQLite database.
//
// A scan run records the source file, the scan kind and parameters, and the
// counters the scan produced, under a UUID run ID. Its pulses are stored with
// their samples as a BLOB, in manager order, alongside every discrete return
// the run produced. A discrete return attached to a pulse carries the pulse's
// waveform key; unassociated returns store NULL there.
//
// The schema is created by embedded golang-migrate migrations when a store is
// opened.
package sqlite
