package goSession

import (
	"github.com/MrEthical07/goSession/access"
)

// HasRole reports whether the signed-in user's role meets role in the
// configured hierarchy.
func (e *Engine) HasRole(role string) bool {
	if e == nil || e.gate == nil {
		return false
	}
	s := e.State()
	return s.Authenticated() && e.gate.HasRole(s.Role(), role)
}

// CanAccessFeature reports whether the signed-in user's subscription tier
// unlocks feature.
func (e *Engine) CanAccessFeature(feature string) bool {
	if e == nil || e.gate == nil {
		return false
	}
	s := e.State()
	return s.Authenticated() && e.gate.CanAccess(s.Tier(), feature)
}

// GetSubscriptionTier returns the signed-in user's tier, or "" when signed
// out or the profile is not loaded.
func (e *Engine) GetSubscriptionTier() string {
	if e == nil {
		return ""
	}
	s := e.State()
	if !s.Authenticated() {
		return ""
	}
	return s.Tier()
}

// Features lists the features the signed-in user's tier unlocks.
func (e *Engine) Features() []string {
	tier := e.GetSubscriptionTier()
	if tier == "" {
		return nil
	}
	return e.entitlements.Features(tier)
}

// Authorize evaluates req for a caller heading to destination. While the
// initial probe runs the outcome is access.Pending, never a redirect.
func (e *Engine) Authorize(destination string, req access.Requirement) access.Decision {
	_, d := e.AuthorizeState(destination, req)
	return d
}

// AuthorizeState is Authorize that also returns the state the decision was
// made against.
func (e *Engine) AuthorizeState(destination string, req access.Requirement) (AuthState, access.Decision) {
	if e == nil || e.gate == nil {
		return AuthState{Status: StatusLoading}, access.Decision{Outcome: access.Pending, Reason: "engine not ready"}
	}
	s := e.State()
	return s, e.authorize(s, destination, req)
}

func (e *Engine) authorize(s AuthState, destination string, req access.Requirement) access.Decision {
	d := e.gate.Evaluate(access.Subject{
		Loading:       s.Loading(),
		Authenticated: s.Authenticated(),
		Role:          s.Role(),
		Tier:          s.Tier(),
		Destination:   destination,
	}, req)
	if d.Redirect() {
		e.metrics.Inc(MetricAccessDenied)
	}
	return d
}

// Gate returns the access gate the engine evaluates with.
func (e *Engine) Gate() *access.Gate {
	if e == nil {
		return nil
	}
	return e.gate
}
