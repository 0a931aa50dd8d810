// Package security derives the suspicious-activity flag, the security score
// and the alerts shown for the signed-in user.
//
// Nothing here is persisted. The attempt log keeps the last few sign-in
// attempts in memory and every report is recomputed from scratch.
//
// # What this package must NOT do
//
//   - Call the identity provider or the profile store.
//   - Accumulate alerts across evaluations.
package security
