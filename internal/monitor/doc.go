// Package monitor keeps one Particle event stream per door sensor and derives
// the "online and open" aggregate from the results.
//
// # States
//
// A Manager starts Inactive. Activate starts one supervisor goroutine per
// configured device (devices that already have one are skipped, so repeated
// calls never open a second stream). Deactivate stops every supervisor,
// waits for it to exit, resets every device to offline and closed, and
// publishes the resulting empty aggregate once.
//
// # Supervisors
//
// Each supervisor loops over connection attempts:
//
//	begin attempt (generation++)
//	   │
//	   ▼
//	Stream ──OnOpen──▶ reconcile fetch ──▶ Online=true, Open=result
//	   │    ──doorMessage──▶ Open = data == "open"
//	   │    ──spark/status──▶ Online = data == "online" (online also refetches)
//	   ▼
//	stream ends ──▶ Online=false (Open kept), generation++ ──▶ wait retry delay ──▶ loop
//
// The retry delay is fixed (3s by default) and retries never give up.
// Cancelling the supervisor ends the stream, any in-flight fetch and the
// retry wait.
//
// # Consistency
//
// Every callback carries the generation of the attempt that produced it.
// The manager applies a callback only if the supervisor is still the
// registered one for its device and the generation is current; everything
// else is dropped. All record mutations, the aggregate recomputation and the
// sink notification happen under one mutex, so sinks never observe a half
// applied update. Sinks are called with that lock held and must not block.
//
// Door state responses that echo a different device identifier are
// rejected.
package monitor
