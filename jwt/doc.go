// Package jwt reads and optionally verifies the access tokens issued by the
// identity provider.
//
// The lifecycle manager only needs the exp claim when the provider omits an
// explicit expiry; [ExpiryOf] reads it without verifying the signature. A
// [Manager] configured with the provider's signing key additionally verifies
// tokens received over the wire and can mint tokens for test doubles.
package jwt
