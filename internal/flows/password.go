package flows

import (
	"context"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/provider"
)

// RunResetPassword asks the provider to send a password reset message.
func RunResetPassword(ctx context.Context, email string, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	email = NormalizeEmail(email)
	if err := deps.checkRate(ctx, OpResetPassword, limiters.PasswordReset, email); err != nil {
		return Outcome{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Outcome{}, deps.rejected(err)
	}
	if err := deps.Gateway.ResetPasswordForEmail(ctx, email); err != nil {
		return Outcome{}, deps.providerFailure(ctx, OpResetPassword, "PROVIDER_RESET_PASSWORD_FAILED", err)
	}
	return Outcome{}, nil
}

// RunUpdatePassword changes the signed-in user's password.
func RunUpdatePassword(ctx context.Context, newPassword string, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	snap, err := signedIn(deps)
	if err != nil {
		return Outcome{}, err
	}
	if err := deps.checkRate(ctx, OpUpdatePassword, limiters.PasswordUpdate, snap.Identity.ID); err != nil {
		return Outcome{}, err
	}
	if err := ValidatePassword(deps.Password, newPassword); err != nil {
		return Outcome{}, deps.rejected(err)
	}

	identity, err := deps.Gateway.UpdateUser(ctx, provider.UserUpdate{Password: newPassword})
	if err != nil {
		return Outcome{}, deps.providerFailure(ctx, OpUpdatePassword, "PROVIDER_UPDATE_PASSWORD_FAILED", err)
	}
	if identity == nil {
		identity = snap.Identity.Clone()
	}
	return Outcome{Identity: identity, Profile: snap.Profile}, nil
}
