package goSession

import "context"

type authStateContextKey struct{}

// WithAuthState attaches s to ctx. The access middleware stores the state it
// authorized a request against so handlers see the same view.
func WithAuthState(ctx context.Context, s AuthState) context.Context {
	return context.WithValue(ctx, authStateContextKey{}, s)
}

// AuthStateFromContext returns the state attached by WithAuthState.
func AuthStateFromContext(ctx context.Context) (AuthState, bool) {
	if ctx == nil {
		return AuthState{}, false
	}
	s, ok := ctx.Value(authStateContextKey{}).(AuthState)
	return s, ok
}
