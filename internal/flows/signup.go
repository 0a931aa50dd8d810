package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
)

// SignUpInput is a registration request. Fields.Email is ignored in favour
// of Email.
type SignUpInput struct {
	Email    string
	Password string
	Fields   profile.Fields
}

// RunSignUp registers a new identity with code-based verification. A
// provider that confirms immediately gets the profile created before the
// session is applied; otherwise the outcome asks for verification.
func RunSignUp(ctx context.Context, in SignUpInput, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	email := NormalizeEmail(in.Email)
	if err := deps.checkRate(ctx, OpSignUp, limiters.SignUp, email); err != nil {
		return Outcome{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Outcome{}, deps.rejected(err)
	}
	if err := ValidatePassword(deps.Password, in.Password); err != nil {
		return Outcome{}, deps.rejected(err)
	}
	sanitizer := deps.Profiles.Sanitizer()
	businessName, err := ValidateBusinessName(sanitizer, in.Fields.BusinessName)
	if err != nil {
		return Outcome{}, deps.rejected(err)
	}

	fields := sanitizer.Fields(in.Fields)
	fields.Email = email
	fields.BusinessName = businessName

	resp, err := deps.Gateway.SignUp(ctx, email, in.Password, provider.SignUpOptions{
		Metadata:         fields.Metadata(),
		CodeVerification: true,
	})
	if err != nil {
		return Outcome{}, deps.providerFailure(ctx, OpSignUp, "PROVIDER_SIGN_UP_FAILED", err)
	}
	if resp == nil || resp.Session == nil {
		out := Outcome{VerificationRequired: true}
		if resp != nil {
			out.Identity = resp.Identity.Clone()
		}
		return out, nil
	}

	id := resp.Session.Identity.ID
	created, createErr := deps.Profiles.Create(ctx, id, fields)
	var partial error
	if createErr != nil && !errors.Is(createErr, profile.ErrAlreadyExists) {
		partial = deps.partial(ctx, OpSignUp, "create_profile", "PROFILE_CREATE_FAILED", createErr)
	}

	res, err := deps.applySession(ctx, OpSignUp, resp.Session)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Identity: res.Snapshot.Identity,
		Profile:  res.Snapshot.Profile,
		Partial:  partial,
	}
	if out.Profile == nil && created != nil {
		if _, err := deps.SetProfile(ctx, id, created); err != nil {
			return Outcome{}, lifecycleErr(err)
		}
		out.Profile = created
	}
	if out.Profile == nil && partial == nil && res.ProfileErr != nil {
		out.Partial = deps.partial(ctx, OpSignUp, "fetch_profile", "PROFILE_FETCH_FAILED", res.ProfileErr)
	}
	return out, nil
}
