package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

// SecurityReport is the score, signals and alerts for the current user,
// computed fresh on each call.
type SecurityReport = security.Report

// SecurityAlert is a generated warning inside a [SecurityReport].
type SecurityAlert = security.Alert

// SignInAttempt is one retained sign-in attempt.
type SignInAttempt = security.Attempt

// SecurityReport evaluates the current identity, profile and sign-in
// history.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil || e.manager == nil {
		return SecurityReport{}
	}
	snap := e.manager.Cell().Load()
	return security.BuildReport(security.Input{
		Identity: snap.Identity,
		Profile:  snap.Profile,
		Attempts: e.attempts.Snapshot(),
		Now:      e.clock.Now(),
	}, e.security)
}

// SignInAttempts returns the retained sign-in attempts, oldest first.
func (e *Engine) SignInAttempts() []SignInAttempt {
	if e == nil || e.attempts == nil {
		return nil
	}
	return e.attempts.Snapshot()
}

// DetectSuspiciousActivity reports whether attempts hold three or more
// failures in the fifteen minutes before now.
func DetectSuspiciousActivity(attempts []SignInAttempt, now time.Time) bool {
	return security.DetectSuspicious(attempts, now, security.DefaultConfig())
}

// ComputeSecurityScore returns a 0 to 100 score from account completeness
// and sign-in recency, using the default thresholds.
func ComputeSecurityScore(identity *session.Identity, p *profile.Profile, now time.Time) int {
	return security.ComputeScore(identity, p, now, security.DefaultConfig())
}
