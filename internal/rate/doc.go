// Package rate provides the in-memory sliding-window limiter used to throttle
// identity operations per operation class and principal.
//
// # Window semantics
//
// Each key owns an independent trailing window of admitted attempt times. An
// attempt is admitted when fewer than MaxAttempts admitted attempts fall inside
// the window ending now; admitted attempts are recorded in the same critical
// section. Denied attempts are not recorded.
//
// # What this package must NOT do
//
//   - Persist attempt history (state is process-local and lost on restart).
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goSession module.
package rate
