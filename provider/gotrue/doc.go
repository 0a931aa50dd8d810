// Package gotrue implements [provider.Gateway] over the REST API of a
// GoTrue-compatible auth server.
//
// The client holds a single session, persists it through a [session.Cache]
// so a restarted process resumes signed in, and emits provider events to
// subscribers on sign-in, refresh, user update and sign-out. Token refresh
// retries transport failures with exponential backoff.
//
// # What this package must NOT do
//
//   - Decide session lifetimes. The lifecycle manager schedules refreshes.
//   - Create accounts from a one-time-code request unless asked to.
package gotrue
