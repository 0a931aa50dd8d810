package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
)

// SignUpMetadata is the optional business information collected at
// registration. Values are sanitized before they leave the engine.
type SignUpMetadata struct {
	FullName     string
	BusinessName string
	Industry     string
	TeamSize     string
	RevenueRange string
}

// OTPPurpose selects which verification a one-time code completes.
type OTPPurpose = provider.OTPPurpose

const (
	PurposeSignup = provider.PurposeSignup
	PurposeEmail  = provider.PurposeEmail
)

// SignUp registers a new account. When the provider requires confirmation the
// result has VerificationRequired set and the caller should collect the
// emailed code for VerifyOTP with PurposeSignup.
func (e *Engine) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) Result {
	return e.run(ctx, flows.OpSignUp, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.SignUp(ctx, flows.SignUpInput{
			Email:    email,
			Password: password,
			Fields: profile.Fields{
				FullName:     meta.FullName,
				BusinessName: meta.BusinessName,
				Industry:     meta.Industry,
				TeamSize:     meta.TeamSize,
				RevenueRange: meta.RevenueRange,
			},
		})
	})
}

// SignIn authenticates with email and password. A failed attempt may set
// Result.Suspicious.
func (e *Engine) SignIn(ctx context.Context, email, password string) Result {
	return e.run(ctx, flows.OpSignIn, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.SignIn(ctx, email, password)
	})
}

// SignInWithOTP emails a one-time sign-in code to an existing account. It
// never creates accounts. A second request for the same address inside the
// resend cooldown is rate limited.
func (e *Engine) SignInWithOTP(ctx context.Context, email string) Result {
	return e.run(ctx, flows.OpSignInWithOTP, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.SignInWithOTP(ctx, email)
	})
}

// ResendOTP requests another code. It obeys the same cooldown and budget as
// SignInWithOTP.
func (e *Engine) ResendOTP(ctx context.Context, email string) Result {
	return e.SignInWithOTP(ctx, email)
}

// OTPCooldownRemaining returns how long email must wait before another code
// can be requested.
func (e *Engine) OTPCooldownRemaining(email string) time.Duration {
	if e == nil || e.cooldowns == nil {
		return 0
	}
	return e.cooldowns.Remaining(flows.NormalizeEmail(email))
}

// VerifyOTP completes a one-time-code sign-in or sign-up confirmation. A
// malformed code is rejected without contacting the provider.
func (e *Engine) VerifyOTP(ctx context.Context, email, token string, purpose OTPPurpose) Result {
	return e.run(ctx, flows.OpVerifyOTP, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.VerifyOTP(ctx, email, token, purpose)
	})
}

// SignOut ends the session. Local state is always cleared, even when the
// provider call fails; that failure is still reported.
func (e *Engine) SignOut(ctx context.Context) Result {
	return e.run(ctx, flows.OpSignOut, func(ctx context.Context) (flows.Outcome, error) {
		return e.flows.SignOut(ctx)
	})
}
