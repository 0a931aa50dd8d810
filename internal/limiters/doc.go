// Package limiters maps identity operation classes to sliding-window limiters
// built on internal/rate.
//
// # Keys
//
// Every class owns a key prefix: signin_, signup_, otp_, verify_, reset_
// (keyed by normalized email) and password_, delete_ (keyed by identity id).
//
// # Cooldowns
//
// [Cooldowns] enforces a minimum gap between one-time-code requests and
// reports when a principal may ask again.
//
// # What this package must NOT do
//
//   - Import goSession or any sibling internal package except internal/rate.
//   - Decide consequences of a denial beyond reporting the wait.
package limiters
