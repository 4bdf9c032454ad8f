// Package app is ocupado's composition root.
//
// # Overview
//
// Run wires configuration, logging, the Particle client, the connection
// monitor, the network watcher and the presentation layers together, then
// blocks in the TUI (or, headless, until the context is cancelled).
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()        credential, base URL, devices
//	       ├─────> logging.New()        file (TUI) or stderr (headless)
//	       ├─────> particle.NewClient() SSE streams, variable reads, probe
//	       ├─────> monitor.New()        sinks: store, metrics, mqtt
//	       ├─────> netwatch.Run()       goroutine
//	       ├─────> httpapi.Serve()      goroutine, when http_addr is set
//	       └─────> ui.Run()             blocks
//
//	netwatch transition ──> store.SetNetwork
//	                   online  ──> manager.Activate
//	                   offline ──> manager.Deactivate
//
// # Error Handling
//
// Fatal (returned from Run):
//   - Missing or invalid config
//   - Unusable log file
//   - Particle client construction failure
//
// Recoverable (logged, surfaced in the store):
//   - Activation failures, shown in the dashboard header until the next
//     successful activation
//   - MQTT connect failure at startup; ocupado runs without the publisher
//   - Status API listen errors
//
// # Shutdown
//
// Cancelling the context (SIGINT/SIGTERM) or quitting the TUI stops the
// watcher and the status API first, then closes the monitor so no
// transition can reactivate streams mid-shutdown.
package app
