// Package logtail reads the tail of ocupado's own log file for the
// dashboard's activity panel.
//
// Read keeps a ring buffer of maxLines while scanning, so memory stays
// O(maxLines) however large the file has grown, and lines come back oldest
// first. ReadEntries decodes the zerolog JSON lines written by package
// logging into Entry values:
//
//	{"level":"warn","component":"monitor","device":"dev1","error":"EOF","time":"...","message":"stream ended"}
//
// renders as
//
//	14:03:07 WRN monitor [dev1] stream ended: EOF
package logtail
