// Package device holds the per-device records and the aggregate view derived
// from them.
//
// A Table is built once from configuration and never grows or shrinks.
// Records carry the identity (immutable), the last known Online/Open flags
// and a connection Generation counter used by the monitor to discard
// callbacks from superseded connections.
//
// Aggregate is a pure function: a device contributes to View.Open only when
// it is both online and open. A device that dropped offline keeps its last
// known Open value for display, but never counts.
//
// Table and Record are not synchronized; the monitor package owns the table
// and serializes every access under its own lock.
package device
