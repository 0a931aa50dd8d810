package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/lifecycle"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return ready(s.deps)
}

func (s Service) SignUp(ctx context.Context, in SignUpInput) (Outcome, error) {
	return RunSignUp(ctx, in, s.deps)
}

func (s Service) SignIn(ctx context.Context, email, pw string) (Outcome, error) {
	return RunSignIn(ctx, email, pw, s.deps)
}

func (s Service) SignInWithOTP(ctx context.Context, email string) (Outcome, error) {
	return RunSignInWithOTP(ctx, email, s.deps)
}

func (s Service) VerifyOTP(ctx context.Context, email, token string, purpose provider.OTPPurpose) (Outcome, error) {
	return RunVerifyOTP(ctx, email, token, purpose, s.deps)
}

func (s Service) SignOut(ctx context.Context) (Outcome, error) {
	return RunSignOut(ctx, s.deps)
}

func (s Service) ResetPassword(ctx context.Context, email string) (Outcome, error) {
	return RunResetPassword(ctx, email, s.deps)
}

func (s Service) UpdatePassword(ctx context.Context, newPassword string) (Outcome, error) {
	return RunUpdatePassword(ctx, newPassword, s.deps)
}

func (s Service) DeleteAccount(ctx context.Context, pw string) (Outcome, error) {
	return RunDeleteAccount(ctx, pw, s.deps)
}

func (s Service) UpdateProfile(ctx context.Context, patch profile.Patch) (Outcome, error) {
	return RunUpdateProfile(ctx, patch, s.deps)
}

func (s Service) RefreshProfile(ctx context.Context) (Outcome, error) {
	return RunRefreshProfile(ctx, s.deps)
}

// lifecycleErr maps lifecycle queue errors onto the shared taxonomy.
func lifecycleErr(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrClosed):
		return autherr.ErrClosed
	case errors.Is(err, lifecycle.ErrNotStarted):
		return autherr.ErrNotReady
	default:
		return err
	}
}

// applySession installs s and fails when the lifecycle discarded it as not
// live, which leaves the user signed out.
func (deps Deps) applySession(ctx context.Context, op string, s *session.Session) (lifecycle.ApplyResult, error) {
	res, err := deps.ApplySession(ctx, s)
	if err != nil {
		return res, lifecycleErr(err)
	}
	if res.Snapshot.Identity == nil {
		dead := provider.NewError(provider.CodeSessionNotFound, 0, "issued session is already expired")
		return res, deps.providerFailure(ctx, op, "SESSION_NOT_LIVE", dead)
	}
	return res, nil
}
