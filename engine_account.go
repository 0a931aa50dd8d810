package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/profile"
)

// ResetPassword asks the provider to email a reset link.
func (e *Engine) ResetPassword(ctx context.Context, email string) Result {
	return e.run(ctx, flows.OpResetPassword, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.ResetPassword(ctx, email)
	})
}

// UpdatePassword changes the signed-in user's password after checking it
// against the password policy.
func (e *Engine) UpdatePassword(ctx context.Context, newPassword string) Result {
	return e.run(ctx, flows.OpUpdatePassword, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.UpdatePassword(ctx, newPassword)
	})
}

// DeleteAccount re-authenticates with password, removes the profile and then
// the identity, and signs out. A profile that cannot be removed does not
// stop the deletion; Result.Partial reports it.
func (e *Engine) DeleteAccount(ctx context.Context, password string) Result {
	return e.run(ctx, flows.OpDeleteAccount, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.DeleteAccount(ctx, password)
	})
}

// UpdateProfile applies patch to the signed-in user's profile.
func (e *Engine) UpdateProfile(ctx context.Context, patch profile.Patch) Result {
	return e.run(ctx, flows.OpUpdateProfile, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.UpdateProfile(ctx, patch)
	})
}

// RefreshProfile reloads the signed-in user's profile from the store.
func (e *Engine) RefreshProfile(ctx context.Context) Result {
	return e.run(ctx, flows.OpRefreshProfile, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.RefreshProfile(ctx)
	})
}
