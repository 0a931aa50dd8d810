// Package lifecycle owns the current session: it probes the provider on
// start, consumes the provider event stream, schedules proactive refresh and
// clears state when a session ends.
//
// # Architecture
//
// A [Manager] runs one loop goroutine over a bounded, ordered queue. Provider
// events, timer fires and orchestrator commands all pass through that queue
// and each is handled to completion before the next, so the loop is the only
// writer of the [state.Cell].
//
// Refresh timers carry a generation number. Re-arming bumps the generation,
// so a timer that fires after it was replaced, after sign-out or after
// [Manager.Close] is discarded by the loop. Provider refresh calls run on a
// worker goroutine and post their result back onto the queue; at most one is
// outstanding.
//
// # What this package must NOT do
//
//   - Call the engine's public API (observers run on the loop goroutine).
//   - Treat a failed refresh as a sign-out.
package lifecycle
