package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/state"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

// AuthStatus is loading until the initial probe and provider subscription
// complete, then authenticated exactly when an identity is present.
type AuthStatus = state.Status

const (
	StatusLoading         = state.StatusLoading
	StatusAuthenticated   = state.StatusAuthenticated
	StatusUnauthenticated = state.StatusUnauthenticated
)

// AuthState is a read-only view of the current user. Identity, Session and
// Profile always belong together.
type AuthState struct {
	Status   AuthStatus
	Identity *session.Identity
	Session  *session.Session
	Profile  *profile.Profile
	// Version increases with every state change.
	Version   uint64
	UpdatedAt time.Time
}

// Loading reports whether the initial probe is still running.
func (s AuthState) Loading() bool { return s.Status == StatusLoading }

// Authenticated reports whether a user is signed in.
func (s AuthState) Authenticated() bool { return s.Status == StatusAuthenticated }

// Role returns the profile role, or "" without a profile.
func (s AuthState) Role() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// Tier returns the profile subscription tier, or "" without a profile.
func (s AuthState) Tier() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.SubscriptionTier
}

func projectState(snap state.Snapshot) AuthState {
	return AuthState{
		Status:    snap.Status(),
		Identity:  snap.Identity,
		Session:   snap.Session,
		Profile:   snap.Profile,
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt,
	}
}

// State returns the current state. The pointed-to values are shared and must
// not be modified; use Snapshot for a private copy.
func (e *Engine) State() AuthState {
	if e == nil || e.manager == nil {
		return AuthState{Status: StatusLoading}
	}
	return projectState(e.manager.Cell().Load())
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() AuthState {
	s := e.State()
	s.Identity = s.Identity.Clone()
	s.Session = s.Session.Clone()
	s.Profile = s.Profile.Clone()
	return s
}

// Subscribe calls fn with every new state, in order, on the engine's event
// goroutine. fn must not block and must not call engine operations that
// wait on that goroutine. The returned function unsubscribes.
func (e *Engine) Subscribe(fn func(AuthState)) func() {
	if e == nil || e.manager == nil || fn == nil {
		return func() {}
	}
	return e.manager.Cell().Subscribe(func(snap state.Snapshot) {
		fn(projectState(snap))
	})
}

// WaitReady blocks until the initial session probe and the provider
// subscription are complete, or ctx ends.
func (e *Engine) WaitReady(ctx context.Context) error {
	if e == nil || e.manager == nil {
		return ErrEngineNotReady
	}
	return e.manager.WaitReady(ctx)
}

// RefreshScheduledAt reports when the armed session refresh will fire.
func (e *Engine) RefreshScheduledAt() (time.Time, bool) {
	if e == nil || e.manager == nil {
		return time.Time{}, false
	}
	return e.manager.RefreshDeadline()
}
