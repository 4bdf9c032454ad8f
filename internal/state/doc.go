// Package state provides thread-safe state sharing between the monitor and
// the presentation layers.
//
// # Overview
//
// The monitor publishes an aggregate view after every device change; the TUI,
// the HTTP status endpoint and anything else that renders status read it back
// on their own schedule. Store is the meeting point.
//
// # Architecture
//
//	Producers:                      Consumers:
//	┌──────────────────────┐        ┌────────────────────┐
//	│ monitor.Manager      │        │ ui (tick)          │
//	│   Publish(view) ─────┼──┐     │ httpapi /api/status│
//	│ netwatch             │  │     │                    │
//	│   SetNetwork(bool) ──┼──┼────▶│ store.Snapshot()   │
//	│ app                  │  │     │                    │
//	│   SetError(err) ─────┼──┘     │                    │
//	└──────────────────────┘ (mutex)└────────────────────┘
//
// # Core Types
//
// Store:
//   - Satisfies monitor.Sink through Publish
//   - Uses sync.RWMutex; the lock is held only for copies
//
// Snapshot:
//   - View: per-device statuses plus the online-and-open subset
//   - Network: "Online", "Offline", or empty before the first probe
//     (NetworkLabel renders the empty value as "Checking connection to
//     Internet...")
//   - Updates: count of views published, useful for change detection
//   - LastError: the last error worth surfacing (for example a failed
//     activation), nil when healthy
//
// # Non-blocking Publish
//
// The monitor calls Publish while holding its own lock. Publish therefore
// only copies the view and returns; it never waits on I/O or on consumers.
//
// # Defensive Copying
//
// Publish clones the incoming view and Snapshot clones it again on the way
// out, so neither producers nor consumers can mutate what the other sees.
// Errors are wrapped on the way out for the same reason.
//
// # Testing Considerations
//
// The zero value is ready to use:
//
//	store := &state.Store{}
package state
