// Package permission maps feature names to bits, subscription tiers to
// feature masks and roles to an ordered hierarchy.
//
// # Architecture boundaries
//
// Pure in-memory data structures with no I/O. A [Registry] and an
// [Entitlements] table are built once at engine construction, frozen, and
// read concurrently afterwards.
//
// # What this package must NOT do
//
//   - Access the identity provider, the profile store or the network.
//   - Import goSession, session or profile.
package permission
