// Package goSession manages the signed-in user of an application that
// delegates identity to an external provider.
//
// An [Engine] mediates registration, password and one-time-code sign-in,
// password reset and change, account deletion and profile edits. It keeps one
// authoritative view of the current identity, session and profile, refreshes
// the session before it expires, rate limits every operation class per
// principal and gates routes and features by role and subscription tier.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config],
// [Result] and state types. Coordination lives under internal/: the
// lifecycle loop that alone writes the state, the operation flows, rate
// limiters, security heuristics and the notice dispatcher.
//
// # What this package must NOT do
//
//   - Implement the identity provider. It talks to one through provider.Gateway.
//   - Store credentials. Passwords are checked against policy and forwarded.
//   - Change the current user outside the lifecycle loop.
//   - Return from an operation with a panic.
package goSession
