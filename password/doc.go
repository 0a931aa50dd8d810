// Package password enforces the password strength policy applied before a
// password is sent to the identity provider.
//
// # Architecture boundaries
//
// Hashing and storage belong to the provider. This package only inspects
// the plaintext the user typed.
//
// # What this package must NOT do
//
//   - Store, hash or log passwords.
//   - Import any other goSession package.
package password
