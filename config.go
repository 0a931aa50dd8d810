package goSession

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/goSession/access"
	"github.com/MrEthical07/goSession/password"
)

// Config defines the tunables of an [Engine].
//
// Config values are copied at Build time and treated as immutable afterwards.
type Config struct {
	Session    SessionConfig   `yaml:"session"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	OTP        OTPConfig       `yaml:"otp"`
	Password   password.Policy `yaml:"password"`
	Security   SecurityConfig  `yaml:"security"`
	Profile    ProfileConfig   `yaml:"profile"`
	Access     AccessConfig    `yaml:"access"`
	Notify     NotifyConfig    `yaml:"notify"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifecycle timing.
type SessionConfig struct {
	// RefreshLead is how long before expiry the session is refreshed.
	RefreshLead time.Duration `yaml:"refresh_lead"`
	// CheckInterval is the period of the expired-session check. Zero
	// disables it.
	CheckInterval  time.Duration `yaml:"check_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	ProfileTimeout time.Duration `yaml:"profile_timeout"`
	EventQueueSize int           `yaml:"event_queue_size"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy allows MaxAttempts inside a trailing Window.
type RatePolicy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

// RateLimitConfig holds one policy per operation class. Each class keeps an
// independent budget per principal.
type RateLimitConfig struct {
	SignIn         RatePolicy `yaml:"sign_in"`
	SignUp         RatePolicy `yaml:"sign_up"`
	OTPRequest     RatePolicy `yaml:"otp_request"`
	OTPVerify      RatePolicy `yaml:"otp_verify"`
	PasswordReset  RatePolicy `yaml:"password_reset"`
	PasswordUpdate RatePolicy `yaml:"password_update"`
	AccountDelete  RatePolicy `yaml:"account_delete"`
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time-code requests.
type OTPConfig struct {
	// ResendCooldown is the minimum gap between code requests for one
	// address. Zero disables it.
	ResendCooldown time.Duration `yaml:"resend_cooldown"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the suspicious-activity and score thresholds.
type SecurityConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`
	RecentSignIn     time.Duration `yaml:"recent_sign_in"`
	StaleLogin       time.Duration `yaml:"stale_login"`
	// AttemptHistory is how many sign-in attempts are retained.
	AttemptHistory int `yaml:"attempt_history"`
}

/*
====================================
PROFILE CONFIG
====================================
*/

// ProfileConfig controls profile synchronization.
type ProfileConfig struct {
	FetchAttempts int           `yaml:"fetch_attempts"`
	FetchBackoff  time.Duration `yaml:"fetch_backoff"`
	DefaultRole   string        `yaml:"default_role"`
	DefaultTier   string        `yaml:"default_tier"`
}

/*
====================================
ACCESS CONFIG
====================================
*/

// AccessConfig describes roles, features and subscription tiers.
type AccessConfig struct {
	Routes access.Routes `yaml:"routes"`
	// RoleHierarchy lists roles from least to most privileged.
	RoleHierarchy []string `yaml:"role_hierarchy"`
	// Features is every gated feature. At most 64.
	Features []string `yaml:"features"`
	// Tiers maps a subscription tier to the features it unlocks.
	Tiers map[string][]string `yaml:"tiers"`
}

/*
====================================
NOTIFY / METRICS CONFIG
====================================
*/

// NotifyConfig controls asynchronous notice delivery.
type NotifyConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`

	// DeliveryTimeout bounds each sink call. Zero means no deadline.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns a configuration usable as-is.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RefreshLead:    5 * time.Minute,
			CheckInterval:  time.Minute,
			ProbeTimeout:   10 * time.Second,
			RefreshTimeout: 10 * time.Second,
			ProfileTimeout: 10 * time.Second,
			EventQueueSize: 64,
		},
		RateLimits: RateLimitConfig{
			SignIn:         RatePolicy{MaxAttempts: 5, Window: 15 * time.Minute},
			SignUp:         RatePolicy{MaxAttempts: 5, Window: 15 * time.Minute},
			OTPRequest:     RatePolicy{MaxAttempts: 3, Window: 5 * time.Minute},
			OTPVerify:      RatePolicy{MaxAttempts: 5, Window: 5 * time.Minute},
			PasswordReset:  RatePolicy{MaxAttempts: 3, Window: 5 * time.Minute},
			PasswordUpdate: RatePolicy{MaxAttempts: 3, Window: 5 * time.Minute},
			AccountDelete:  RatePolicy{MaxAttempts: 3, Window: 5 * time.Minute},
		},
		OTP: OTPConfig{
			ResendCooldown: 60 * time.Second,
		},
		Password: password.DefaultPolicy(),
		Security: SecurityConfig{
			FailureThreshold: 3,
			FailureWindow:    15 * time.Minute,
			RecentSignIn:     7 * 24 * time.Hour,
			StaleLogin:       30 * 24 * time.Hour,
			AttemptHistory:   10,
		},
		Profile: ProfileConfig{
			FetchAttempts: 3,
			FetchBackoff:  100 * time.Millisecond,
			DefaultRole:   "user",
			DefaultTier:   "free",
		},
		Access: AccessConfig{
			Routes:        access.DefaultRoutes(),
			RoleHierarchy: []string{"user", "manager", "admin"},
			Features: []string{
				"dashboard",
				"analytics",
				"reports",
				"integrations",
				"team_management",
				"api_access",
				"priority_support",
			},
			Tiers: map[string][]string{
				"free":       {"dashboard"},
				"pro":        {"dashboard", "analytics", "reports", "integrations"},
				"enterprise": {"dashboard", "analytics", "reports", "integrations", "team_management", "api_access", "priority_support"},
			},
		},
		Notify: NotifyConfig{
			Enabled:    true,
			BufferSize:      256,
			DropIfFull:      true,
			DeliveryTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// LoadConfigFile reads a YAML file on top of DefaultConfig. Durations are Go
// duration strings such as "15m". The result is validated.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	// Lists and maps from the file replace the defaults instead of merging.
	var probe struct {
		Access struct {
			Tiers map[string][]string `yaml:"tiers"`
		} `yaml:"access"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if probe.Access.Tiers != nil {
		cfg.Access.Tiers = nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Access.RoleHierarchy = slices.Clone(cfg.Access.RoleHierarchy)
	out.Access.Features = slices.Clone(cfg.Access.Features)
	if cfg.Access.Tiers != nil {
		out.Access.Tiers = make(map[string][]string, len(cfg.Access.Tiers))
		for tier, features := range cfg.Access.Tiers {
			out.Access.Tiers[tier] = slices.Clone(features)
		}
	}
	return out
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// Session
	if c.Session.RefreshLead < 0 {
		add("session.refresh_lead must be >= 0")
	}
	if c.Session.CheckInterval < 0 {
		add("session.check_interval must be >= 0")
	}
	if c.Session.ProbeTimeout <= 0 || c.Session.RefreshTimeout <= 0 || c.Session.ProfileTimeout <= 0 {
		add("session timeouts must be > 0")
	}
	if c.Session.EventQueueSize <= 0 {
		add("session.event_queue_size must be > 0")
	}

	// Rate limits
	for name, p := range map[string]RatePolicy{
		"sign_in":         c.RateLimits.SignIn,
		"sign_up":         c.RateLimits.SignUp,
		"otp_request":     c.RateLimits.OTPRequest,
		"otp_verify":      c.RateLimits.OTPVerify,
		"password_reset":  c.RateLimits.PasswordReset,
		"password_update": c.RateLimits.PasswordUpdate,
		"account_delete":  c.RateLimits.AccountDelete,
	} {
		if p.MaxAttempts <= 0 || p.Window <= 0 {
			add("rate_limits.%s requires max_attempts > 0 and window > 0", name)
		}
	}

	if c.OTP.ResendCooldown < 0 {
		add("otp.resend_cooldown must be >= 0")
	}

	if err := c.Password.Validate(); err != nil {
		add("password: %w", err)
	}

	// Security
	if c.Security.FailureThreshold <= 0 {
		add("security.failure_threshold must be > 0")
	}
	if c.Security.FailureWindow <= 0 || c.Security.RecentSignIn <= 0 || c.Security.StaleLogin <= 0 {
		add("security windows must be > 0")
	}
	if c.Security.AttemptHistory < c.Security.FailureThreshold {
		add("security.attempt_history must be >= failure_threshold")
	}

	// Profile
	if c.Profile.FetchAttempts <= 0 {
		add("profile.fetch_attempts must be > 0")
	}
	if c.Profile.FetchBackoff < 0 {
		add("profile.fetch_backoff must be >= 0")
	}
	if strings.TrimSpace(c.Profile.DefaultRole) == "" || strings.TrimSpace(c.Profile.DefaultTier) == "" {
		add("profile default role and tier are required")
	}

	// Access
	if len(c.Access.RoleHierarchy) == 0 {
		add("access.role_hierarchy must not be empty")
	} else if !slices.Contains(c.Access.RoleHierarchy, c.Profile.DefaultRole) {
		add("profile.default_role %q is not in access.role_hierarchy", c.Profile.DefaultRole)
	}
	if len(c.Access.Features) > 64 {
		add("access.features supports at most 64 entries")
	}
	if _, ok := c.Access.Tiers[c.Profile.DefaultTier]; !ok {
		add("profile.default_tier %q is not in access.tiers", c.Profile.DefaultTier)
	}
	for _, tier := range slices.Sorted(maps.Keys(c.Access.Tiers)) {
		for _, f := range c.Access.Tiers[tier] {
			if !slices.Contains(c.Access.Features, f) {
				add("access.tiers.%s references unknown feature %q", tier, f)
			}
		}
	}

	if c.Notify.Enabled && c.Notify.BufferSize <= 0 {
		add("notify.buffer_size must be > 0 when enabled")
	}
	if c.Notify.DeliveryTimeout < 0 {
		add("notify.delivery_timeout must be >= 0")
	}

	return errors.Join(errs...)
}
