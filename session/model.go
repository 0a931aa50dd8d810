package session

import (
	"maps"
	"time"
)

// Identity is the provider's view of the signed-in user. It is replaced
// wholesale on every provider event and never mutated in place.
type Identity struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	LastSignInAt     *time.Time
	Metadata         map[string]any
}

// EmailConfirmed reports whether the provider has confirmed the email address.
func (i *Identity) EmailConfirmed() bool {
	return i != nil && i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// MetadataString returns the string value stored under key in the identity
// metadata, or "" when absent or not a string.
func (i *Identity) MetadataString(key string) string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	v, _ := i.Metadata[key].(string)
	return v
}

// Clone returns a deep copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.EmailConfirmedAt = cloneTime(i.EmailConfirmedAt)
	out.LastSignInAt = cloneTime(i.LastSignInAt)
	if i.Metadata != nil {
		out.Metadata = maps.Clone(i.Metadata)
	}
	return &out
}

// Session is a provider-issued credential pair bound to an identity.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresAt is the access token expiry. A zero value means the provider
	// did not report one and the token's exp claim must be consulted.
	ExpiresAt time.Time
	Identity  Identity
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Identity = *s.Identity.Clone()
	return &out
}

// Live reports whether the session has a known expiry strictly after now.
func (s *Session) Live(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && s.ExpiresAt.After(now)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
