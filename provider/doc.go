// Package provider defines the contract between the session engine and the
// external identity provider.
//
// # Architecture boundaries
//
// The [Gateway] interface is the only way the engine reaches the provider.
// Implementations deliver [Event] values to subscribers in the order the
// underlying state changed; the engine serializes them onto its own queue.
//
// # What this package must NOT do
//
//   - Import goSession or any internal package.
//   - Translate provider failures into user-facing messages (the engine owns
//     the message table; this package only classifies failures by [Code]).
package provider
