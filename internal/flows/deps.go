package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/lifecycle"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/internal/state"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
)

// Operation names used in errors, logs and metrics.
const (
	OpSignUp         = "sign_up"
	OpSignIn         = "sign_in"
	OpSignInWithOTP  = "sign_in_otp"
	OpVerifyOTP      = "verify_otp"
	OpSignOut        = "sign_out"
	OpResetPassword  = "reset_password"
	OpUpdatePassword = "update_password"
	OpDeleteAccount  = "delete_account"
	OpUpdateProfile  = "update_profile"
	OpRefreshProfile = "refresh_profile"
)

// Outcome is the flow-local success shape.
type Outcome struct {
	Identity *session.Identity
	Profile  *profile.Profile
	// VerificationRequired is set by a sign-up the provider has not
	// confirmed yet. The caller routes to code entry.
	VerificationRequired bool
	// Partial is set when a secondary step failed after the primary
	// operation succeeded.
	Partial error
	// Suspicious is set on a failed sign-in when the attempt history shows
	// repeated failures.
	Suspicious bool
	// Attempts is the history a failed sign-in was evaluated against.
	Attempts []security.Attempt
}

// MetricIDs carries the counters flows increment. The zero value of a field
// is a real metric ID, so hosts must set every field.
type MetricIDs struct {
	RateLimited        int
	ValidationRejected int
	ProviderError      int
	PartialFailure     int
	SuspiciousActivity int
}

// Deps captures every collaborator of the operation flows.
type Deps struct {
	Gateway  provider.Gateway
	Profiles *profile.Synchronizer
	Attempts *security.AttemptLog
	Security security.Config
	Password password.Policy
	Logger   *slog.Logger
	Now      func() time.Time

	CheckRate         func(limiters.Class, string) (bool, time.Duration)
	CooldownRemaining func(email string) time.Duration
	StartCooldown     func(email string)
	ResetCooldowns    func()

	Current      func() state.Snapshot
	ApplySession func(context.Context, *session.Session) (lifecycle.ApplyResult, error)
	SetProfile   func(context.Context, string, *profile.Profile) (bool, error)
	ClearState   func(context.Context) (state.Snapshot, error)

	MetricInc func(int)
	Metrics   MetricIDs
}

func normalizeDeps(deps *Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CheckRate == nil {
		deps.CheckRate = func(limiters.Class, string) (bool, time.Duration) { return true, 0 }
	}
	if deps.CooldownRemaining == nil {
		deps.CooldownRemaining = func(string) time.Duration { return 0 }
	}
	if deps.StartCooldown == nil {
		deps.StartCooldown = func(string) {}
	}
	if deps.ResetCooldowns == nil {
		deps.ResetCooldowns = func() {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Attempts == nil {
		deps.Attempts = security.NewAttemptLog(0)
	}
}

func ready(deps Deps) bool {
	return deps.Gateway != nil && deps.Profiles != nil && deps.Current != nil &&
		deps.ApplySession != nil && deps.SetProfile != nil && deps.ClearState != nil
}
