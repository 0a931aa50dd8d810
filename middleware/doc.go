// Package middleware adapts the engine's access gate to net/http.
//
// # Guards
//
//   - [Guard] evaluates an arbitrary access.Requirement.
//   - [RequireSignIn] admits any signed-in user.
//   - [RequireRole] admits users meeting a role in the hierarchy.
//   - [RequireFeature] admits users whose tier unlocks a feature.
//
// A request arriving before the initial session probe completes waits for
// it, bounded by the request context. Denials become redirects to the
// sign-in, unauthorized or upgrade route; the sign-in redirect carries the
// original path in the return parameter.
//
// # What this package must NOT do
//
//   - Redirect while the session is still loading.
//   - Make access decisions itself. The engine's gate decides.
package middleware
