// Package notify implements the asynchronous notification port operations
// report user-facing outcomes through.
//
// # Components
//
//   - [Sink]: consumer interface (channel, JSON writer, slog, fan-out, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full delivery.
//   - [Notice]: one message with kind, level, operation and identity.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. Deciding which notices to send
// belongs to the Engine.
//
// # What this package must NOT do
//
//   - Change an operation result based on delivery success.
//   - Import goSession or any sibling internal package.
package notify
