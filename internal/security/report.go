package security

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

// Score contributions. The total is capped at MaxScore.
const (
	PointsEmailConfirmed = 30
	PointsFullName       = 15
	PointsBusinessName   = 15
	PointsIndustry       = 10
	PointsRecentSignIn   = 30
	MaxScore             = 100
)

// Config holds the heuristic thresholds.
type Config struct {
	// FailureThreshold failures within FailureWindow flag suspicious activity.
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`
	// RecentSignIn is how recent the last sign-in must be to earn points.
	RecentSignIn time.Duration `yaml:"recent_sign_in"`
	// StaleLogin raises an alert when the last sign-in is older.
	StaleLogin time.Duration `yaml:"stale_login"`
}

// DefaultConfig returns the heuristic defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		FailureWindow:    15 * time.Minute,
		RecentSignIn:     7 * 24 * time.Hour,
		StaleLogin:       30 * 24 * time.Hour,
	}
}

// Validate rejects non-positive thresholds.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be > 0")
	}
	if c.FailureWindow <= 0 || c.RecentSignIn <= 0 || c.StaleLogin <= 0 {
		return fmt.Errorf("security windows must be > 0")
	}
	return nil
}

// DetectSuspicious reports whether attempts hold at least FailureThreshold
// failures inside the trailing FailureWindow ending at now.
func DetectSuspicious(attempts []Attempt, now time.Time, cfg Config) bool {
	cutoff := now.Add(-cfg.FailureWindow)
	failures := 0
	for _, a := range attempts {
		if a.Outcome == OutcomeFailure && a.At.After(cutoff) {
			failures++
		}
	}
	return failures >= cfg.FailureThreshold
}

// Signals are the independent inputs of the security score.
type Signals struct {
	EmailConfirmed  bool
	HasFullName     bool
	HasBusinessName bool
	HasIndustry     bool
	RecentSignIn    bool
}

// Points returns the capped score for s.
func (s Signals) Points() int {
	total := 0
	add := func(on bool, points int) {
		if on {
			total += points
		}
	}
	add(s.EmailConfirmed, PointsEmailConfirmed)
	add(s.HasFullName, PointsFullName)
	add(s.HasBusinessName, PointsBusinessName)
	add(s.HasIndustry, PointsIndustry)
	add(s.RecentSignIn, PointsRecentSignIn)
	return min(total, MaxScore)
}

// SignalsOf extracts the score signals from identity and profile. Profile
// fields fall back to the identity metadata when no profile is loaded.
func SignalsOf(identity *session.Identity, p *profile.Profile, now time.Time, cfg Config) Signals {
	if identity == nil {
		return Signals{}
	}
	field := func(fromProfile, metadataKey string) bool {
		if fromProfile != "" {
			return true
		}
		return identity.MetadataString(metadataKey) != ""
	}

	var fullName, businessName, industry string
	if p != nil {
		fullName, businessName, industry = p.FullName, p.BusinessName, p.Industry
	}

	s := Signals{
		EmailConfirmed:  identity.EmailConfirmed(),
		HasFullName:     field(fullName, "full_name"),
		HasBusinessName: field(businessName, "business_name"),
		HasIndustry:     field(industry, "industry"),
	}
	if identity.LastSignInAt != nil {
		s.RecentSignIn = now.Sub(*identity.LastSignInAt) <= cfg.RecentSignIn
	}
	return s
}

// ComputeScore returns the security score of identity, 0 to MaxScore.
func ComputeScore(identity *session.Identity, p *profile.Profile, now time.Time, cfg Config) int {
	return SignalsOf(identity, p, now, cfg).Points()
}

// AlertType names an alert.
type AlertType string

const (
	AlertSuspiciousActivity AlertType = "suspicious_activity"
	AlertStaleLogin         AlertType = "stale_login"
)

// Alert is a generated, never stored, warning.
type Alert struct {
	Type    AlertType
	Message string
	At      time.Time
}

// Input is everything a report is computed from.
type Input struct {
	Identity *session.Identity
	Profile  *profile.Profile
	Attempts []Attempt
	Now      time.Time
}

// Report is the security evaluation for one moment.
type Report struct {
	Score      int
	Signals    Signals
	Suspicious bool
	Alerts     []Alert
	Attempts   int
	Failures   int
}

// BuildReport evaluates input from scratch.
func BuildReport(input Input, cfg Config) Report {
	r := Report{
		Signals:    SignalsOf(input.Identity, input.Profile, input.Now, cfg),
		Suspicious: DetectSuspicious(input.Attempts, input.Now, cfg),
		Attempts:   len(input.Attempts),
	}
	r.Score = r.Signals.Points()
	for _, a := range input.Attempts {
		if a.Outcome == OutcomeFailure {
			r.Failures++
		}
	}

	if r.Suspicious {
		r.Alerts = append(r.Alerts, Alert{
			Type:    AlertSuspiciousActivity,
			Message: "Multiple failed sign-in attempts were detected recently.",
			At:      input.Now,
		})
	}
	if id := input.Identity; id != nil && id.LastSignInAt != nil && input.Now.Sub(*id.LastSignInAt) > cfg.StaleLogin {
		r.Alerts = append(r.Alerts, Alert{
			Type:    AlertStaleLogin,
			Message: fmt.Sprintf("No sign-in for more than %d days.", int(cfg.StaleLogin.Hours()/24)),
			At:      input.Now,
		})
	}
	return r
}
