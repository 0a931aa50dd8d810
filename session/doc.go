// Package session holds the provider session model and the restart cache that
// keeps the current session across process restarts.
//
// # Binary encoding
//
// Cached sessions use a compact versioned binary format. The encoder is
// append-only: new versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Session] and [Identity] models and the [Cache]
// implementations. It does NOT interpret JWT tokens, schedule refreshes, or
// decide authentication state; those belong to the lifecycle manager.
//
// # What this package must NOT do
//
//   - Import goSession, jwt, or provider (no upward imports).
//   - Log or expose access/refresh tokens.
package session
