package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
)

// RunSignInWithOTP asks the provider to send a one-time code. It never lets
// the provider create an account and honours the per-address resend
// cooldown before touching the rate limiter.
func RunSignInWithOTP(ctx context.Context, email string, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	email = NormalizeEmail(email)
	if wait := deps.CooldownRemaining(email); wait > 0 {
		deps.MetricInc(deps.Metrics.RateLimited)
		return Outcome{}, &autherr.RateLimitError{Operation: OpSignInWithOTP, RetryAfter: wait}
	}
	if err := deps.checkRate(ctx, OpSignInWithOTP, limiters.OTPRequest, email); err != nil {
		return Outcome{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Outcome{}, deps.rejected(err)
	}

	if err := deps.Gateway.SignInWithOTP(ctx, email, provider.OTPOptions{CreateUser: false}); err != nil {
		return Outcome{}, deps.providerFailure(ctx, OpSignInWithOTP, "PROVIDER_OTP_REQUEST_FAILED", err)
	}
	deps.StartCooldown(email)
	return Outcome{}, nil
}

// RunVerifyOTP checks a one-time code. Malformed codes are rejected before
// any provider call. On success the session is applied and the profile
// fetched; a sign-up verification also creates the profile when none
// exists. Profile failures never undo the verification.
func RunVerifyOTP(ctx context.Context, email, token string, purpose provider.OTPPurpose, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	email = NormalizeEmail(email)
	if err := deps.checkRate(ctx, OpVerifyOTP, limiters.OTPVerify, email); err != nil {
		return Outcome{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Outcome{}, deps.rejected(err)
	}
	if err := ValidateOTP(token); err != nil {
		return Outcome{}, deps.rejected(err)
	}
	if !purpose.Valid() {
		return Outcome{}, deps.rejected(autherr.Invalid("purpose", "Unknown verification type."))
	}

	resp, err := deps.Gateway.VerifyOTP(ctx, email, token, purpose)
	if err == nil && (resp == nil || resp.Session == nil) {
		err = provider.NewError(provider.CodeUnexpected, 0, "verification returned no session")
	}
	if err != nil {
		return Outcome{}, deps.providerFailure(ctx, OpVerifyOTP, "PROVIDER_VERIFY_OTP_FAILED", err)
	}

	res, err := deps.applySession(ctx, OpVerifyOTP, resp.Session)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Identity: res.Snapshot.Identity, Profile: res.Snapshot.Profile}
	if res.ProfileErr != nil {
		out.Partial = deps.partial(ctx, OpVerifyOTP, "fetch_profile", "PROFILE_FETCH_FAILED", res.ProfileErr)
		return out, nil
	}
	if out.Profile != nil || purpose != provider.PurposeSignup || out.Identity == nil {
		return out, nil
	}

	id := out.Identity
	created, err := deps.Profiles.Create(ctx, id.ID, profile.FieldsFromMetadata(id.Email, id.Metadata))
	if errors.Is(err, profile.ErrAlreadyExists) {
		created, _, err = deps.Profiles.Fetch(ctx, id.ID)
	}
	if err != nil {
		out.Partial = deps.partial(ctx, OpVerifyOTP, "create_profile", "PROFILE_CREATE_FAILED", err)
		return out, nil
	}
	if created != nil {
		if _, err := deps.SetProfile(ctx, id.ID, created); err != nil {
			return Outcome{}, lifecycleErr(err)
		}
		out.Profile = created
	}
	return out, nil
}
