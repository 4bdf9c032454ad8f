// Package particle is a small client for the Particle cloud API.
//
// # Endpoints
//
//   - GET /v1/devices/{id}/events: Server-Sent Events feed of the device's
//     published events. Only doorMessage and spark/status are surfaced.
//   - GET /v1/devices/{id}/doorMessage: reads the door cloud variable, the
//     authoritative state used after (re)connecting.
//   - HEAD /: reachability probe used by the network watcher.
//
// Requests authenticate with an Authorization: Bearer header.
//
// # Event Payloads
//
// Each SSE data field carries JSON:
//
//	{"data":"open","ttl":60,"published_at":"2024-01-01T00:00:00.000Z","coreid":"1e00..."}
//
// Events whose coreid does not match the subscribed device are dropped.
//
// # Stream Lifecycle
//
// Stream blocks for the lifetime of the connection. It calls
// StreamHandler.OnOpen after a 200 response, then OnEvent for each event in
// arrival order. Any return from Stream is terminal (EOF, read error, non-200,
// cancellation); the transport never retries on its own. Reconnection policy
// belongs to the caller.
package particle
