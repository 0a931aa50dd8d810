package flows

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/provider"
)

// RunSignIn signs in with email and password. Every call that passes the
// rate limit and validation is recorded in the attempt log. A failure is
// evaluated for suspicious activity against the history as it was before
// this attempt was recorded.
func RunSignIn(ctx context.Context, email, pw string, deps Deps) (Outcome, error) {
	normalizeDeps(&deps)
	if !ready(deps) {
		return Outcome{}, autherr.ErrNotReady
	}

	email = NormalizeEmail(email)
	if err := deps.checkRate(ctx, OpSignIn, limiters.SignIn, email); err != nil {
		return Outcome{}, err
	}
	if email == "" {
		return Outcome{}, deps.rejected(autherr.Invalid("email", "Email is required."))
	}
	if strings.TrimSpace(pw) == "" {
		return Outcome{}, deps.rejected(autherr.Invalid("password", "Password is required."))
	}

	now := deps.Now()
	attemptID, before := deps.Attempts.Begin(limiters.Key(limiters.SignIn, email), now)

	resp, err := deps.Gateway.SignInWithPassword(ctx, email, pw)
	if err == nil && (resp == nil || resp.Session == nil) {
		err = provider.NewError(provider.CodeUnexpected, 0, "sign-in returned no session")
	}
	if err != nil {
		deps.Attempts.Resolve(attemptID, security.OutcomeFailure)
		out := Outcome{
			Attempts:   before,
			Suspicious: security.DetectSuspicious(before, now, deps.Security),
		}
		if out.Suspicious {
			deps.MetricInc(deps.Metrics.SuspiciousActivity)
			deps.Logger.LogAttrs(ctx, slog.LevelWarn, "suspicious sign-in activity",
				slog.String("operation", OpSignIn),
				slog.Int("recent_attempts", len(before)),
			)
		}
		return out, deps.providerFailure(ctx, OpSignIn, "PROVIDER_SIGN_IN_FAILED", err)
	}
	deps.Attempts.Resolve(attemptID, security.OutcomeSuccess)

	res, err := deps.applySession(ctx, OpSignIn, resp.Session)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Identity: res.Snapshot.Identity, Profile: res.Snapshot.Profile}
	if res.ProfileErr != nil {
		out.Partial = deps.partial(ctx, OpSignIn, "fetch_profile", "PROFILE_FETCH_FAILED", res.ProfileErr)
	}
	return out, nil
}
