package flows

import (
	"context"

	"github.com/MrEthical07/goSession/internal/autherr"
)

// RunSignOut signs out at the provider and clears identity, session,
// profile, attempt history and cooldowns whatever the provider answered. A
// provider error is still returned. Calling it while signed out is safe.
func RunSignOut(ctx context.Context, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	providerErr := deps.Gateway.SignOut(ctx)

	_, clearErr := deps.ClearState(context.WithoutCancel(ctx))
	deps.Attempts.Clear()
	deps.ResetCooldowns()

	if providerErr != nil {
		return Outcome{}, deps.providerFailure(ctx, OpSignOut, "PROVIDER_SIGN_OUT_FAILED", providerErr)
	}
	if clearErr != nil {
		return Outcome{}, lifecycleErr(clearErr)
	}
	return Outcome{}, nil
}
