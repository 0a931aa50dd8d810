// Package flows contains the orchestrators for every Engine operation.
//
// Each flow function (RunSignIn, RunVerifyOTP, RunDeleteAccount, etc.)
// accepts a [Deps] value and follows the same shape: rate-limit check,
// input validation, provider call, local state update. Flows return an
// [Outcome] or one of the internal/autherr error types; the Engine turns
// both into a Result.
//
// # Architecture boundaries
//
// Flow functions coordinate the provider gateway, rate limiters, profile
// synchronizer and lifecycle manager. They do NOT own any of these
// resources. State writes go through the lifecycle queue functions in
// [Deps].
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Send user notifications. The Engine decides which notices to emit.
package flows
