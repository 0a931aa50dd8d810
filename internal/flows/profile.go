package flows

import (
	"context"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/profile"
)

// RunUpdateProfile applies patch to the signed-in user's profile and
// publishes the result.
func RunUpdateProfile(ctx context.Context, patch profile.Patch, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	snap, err := signedIn(deps)
	if err != nil {
		return Outcome{}, err
	}
	if patch.BusinessName != nil {
		name, err := ValidateBusinessName(deps.Profiles.Sanitizer(), *patch.BusinessName)
		if err != nil {
			return Outcome{}, deps.rejected(err)
		}
		patch.BusinessName = &name
	}

	id := snap.Identity.ID
	p, err := deps.Profiles.Update(ctx, id, patch)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := deps.SetProfile(ctx, id, p); err != nil {
		return Outcome{}, lifecycleErr(err)
	}
	return Outcome{Identity: snap.Identity, Profile: p}, nil
}

// RunRefreshProfile reloads the signed-in user's profile from the store.
// A missing profile is published as nil.
func RunRefreshProfile(ctx context.Context, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	snap, err := signedIn(deps)
	if err != nil {
		return Outcome{}, err
	}
	id := snap.Identity.ID
	p, _, err := deps.Profiles.Fetch(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := deps.SetProfile(ctx, id, p); err != nil {
		return Outcome{}, lifecycleErr(err)
	}
	return Outcome{Identity: snap.Identity, Profile: p}, nil
}
