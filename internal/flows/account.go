package flows

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/state"
)

// RunDeleteAccount re-authenticates with pw, deletes the profile and then
// the identity. Only an identity deletion failure fails the operation; a
// profile deletion failure is reported as a partial failure. Local state is
// cleared on success.
func RunDeleteAccount(ctx context.Context, pw string, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	snap, err := signedIn(deps)
	if err != nil {
		return Outcome{}, err
	}
	id := snap.Identity.ID
	if err := deps.checkRate(ctx, OpDeleteAccount, limiters.AccountDelete, id); err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(pw) == "" {
		return Outcome{}, deps.rejected(autherr.Invalid("password", "Please enter your password to confirm."))
	}

	resp, err := deps.Gateway.SignInWithPassword(ctx, snap.Identity.Email, pw)
	if err != nil {
		return Outcome{}, deps.providerFailure(ctx, OpDeleteAccount, "PROVIDER_REAUTH_FAILED", err)
	}
	if resp != nil && resp.Identity != nil && resp.Identity.ID != id {
		return Outcome{}, deps.rejected(autherr.Invalid("password", "Password does not match this account."))
	}

	var partial error
	if err := deps.Profiles.Delete(ctx, id); err != nil {
		partial = deps.partial(ctx, OpDeleteAccount, "delete_profile", "PROFILE_DELETE_FAILED", err)
	}

	if err := deps.Gateway.DeleteUser(ctx, id); err != nil {
		return Outcome{Partial: partial}, deps.providerFailure(ctx, OpDeleteAccount, "PROVIDER_DELETE_USER_FAILED", err)
	}

	if err := deps.Gateway.SignOut(ctx); err != nil {
		deps.Logger.LogAttrs(ctx, slog.LevelDebug, "sign-out after account deletion failed",
			slog.String("operation", OpDeleteAccount), slog.String("error", err.Error()))
	}
	if _, err := deps.ClearState(context.WithoutCancel(ctx)); err != nil {
		return Outcome{Partial: partial}, lifecycleErr(err)
	}
	deps.Attempts.Clear()
	deps.ResetCooldowns()

	return Outcome{Identity: snap.Identity, Partial: partial}, nil
}

func signedIn(deps Deps) (state.Snapshot, error) {
	snap := deps.Current()
	if !snap.Ready {
		return snap, autherr.ErrNotReady
	}
	if snap.Identity == nil {
		return snap, autherr.ErrNotAuthenticated
	}
	return snap, nil
}
