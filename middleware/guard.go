package middleware

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/access"
)

// Authorizer is the part of the engine the guards need.
type Authorizer interface {
	AuthorizeState(destination string, req access.Requirement) (goSession.AuthState, access.Decision)
	WaitReady(ctx context.Context) error
}

var _ Authorizer = (*goSession.Engine)(nil)

// Guard returns middleware that admits a request only when the engine's
// access gate allows req. While the initial session probe runs the request
// waits for it rather than redirecting. Denied requests are redirected to
// the gate's location; admitted ones see the evaluated state through
// goSession.AuthStateFromContext.
func Guard(engine Authorizer, req access.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			destination := r.URL.RequestURI()
			state, decision := engine.AuthorizeState(destination, req)
			if decision.Outcome == access.Pending {
				if err := engine.WaitReady(r.Context()); err != nil {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				state, decision = engine.AuthorizeState(destination, req)
			}

			switch {
			case decision.Outcome == access.Allow:
				next.ServeHTTP(w, r.WithContext(goSession.WithAuthState(r.Context(), state)))
			case decision.Redirect():
				http.Redirect(w, r, decision.Location, redirectStatus(r))
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}

// RequireSignIn admits any signed-in user.
func RequireSignIn(engine Authorizer) func(http.Handler) http.Handler {
	return Guard(engine, access.Requirement{})
}

// RequireRole admits users whose role meets role in the hierarchy.
func RequireRole(engine Authorizer, role string) func(http.Handler) http.Handler {
	return Guard(engine, access.Requirement{Role: role})
}

// RequireFeature admits users whose tier unlocks feature.
func RequireFeature(engine Authorizer, feature string) func(http.Handler) http.Handler {
	return Guard(engine, access.Requirement{Feature: feature})
}

func redirectStatus(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
