package goSession

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Session.RefreshLead)
	assert.Equal(t, RatePolicy{MaxAttempts: 5, Window: 15 * time.Minute}, cfg.RateLimits.SignIn)
	assert.Equal(t, RatePolicy{MaxAttempts: 3, Window: 5 * time.Minute}, cfg.RateLimits.OTPRequest)
	assert.Equal(t, 60*time.Second, cfg.OTP.ResendCooldown)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "check interval disabled",
			mutate:    func(c *Config) { c.Session.CheckInterval = 0 },
			wantValid: true,
		},
		{
			name:      "negative refresh lead",
			mutate:    func(c *Config) { c.Session.RefreshLead = -time.Second },
			wantValid: false,
		},
		{
			name:      "zero queue",
			mutate:    func(c *Config) { c.Session.EventQueueSize = 0 },
			wantValid: false,
		},
		{
			name:      "zero rate window",
			mutate:    func(c *Config) { c.RateLimits.OTPVerify.Window = 0 },
			wantValid: false,
		},
		{
			name:      "cooldown disabled",
			mutate:    func(c *Config) { c.OTP.ResendCooldown = 0 },
			wantValid: true,
		},
		{
			name:      "password max above provider limit",
			mutate:    func(c *Config) { c.Password.MaxLength = 200 },
			wantValid: false,
		},
		{
			name:      "attempt history below threshold",
			mutate:    func(c *Config) { c.Security.AttemptHistory = 2 },
			wantValid: false,
		},
		{
			name:      "default role outside hierarchy",
			mutate:    func(c *Config) { c.Profile.DefaultRole = "owner" },
			wantValid: false,
		},
		{
			name:      "default tier missing",
			mutate:    func(c *Config) { c.Profile.DefaultTier = "gold" },
			wantValid: false,
		},
		{
			name: "tier references unknown feature",
			mutate: func(c *Config) {
				c.Access.Tiers["pro"] = append(c.Access.Tiers["pro"], "teleport")
			},
			wantValid: false,
		},
		{
			name:      "notify buffer zero while disabled",
			mutate:    func(c *Config) { c.Notify = NotifyConfig{} },
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.EventQueueSize = 0
	cfg.Profile.FetchAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event_queue_size")
	assert.Contains(t, err.Error(), "fetch_attempts")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosession.yaml")
	data := []byte(`
session:
  refresh_lead: 2m
  check_interval: 0s
rate_limits:
  sign_in:
    max_attempts: 10
    window: 30m
otp:
  resend_cooldown: 90s
access:
  tiers:
    free: [dashboard]
    team: [dashboard, reports]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Session.RefreshLead)
	assert.Zero(t, cfg.Session.CheckInterval)
	assert.Equal(t, RatePolicy{MaxAttempts: 10, Window: 30 * time.Minute}, cfg.RateLimits.SignIn)
	assert.Equal(t, RatePolicy{MaxAttempts: 5, Window: 15 * time.Minute}, cfg.RateLimits.SignUp)
	assert.Equal(t, 90*time.Second, cfg.OTP.ResendCooldown)
	assert.Equal(t, map[string][]string{
		"free": {"dashboard"},
		"team": {"dashboard", "reports"},
	}, cfg.Access.Tiers)
}

func TestLoadConfigFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile:\n  fetch_attempts: 0\n"), 0o600))

	_, err := LoadConfigFile(path)
	assert.Error(t, err)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
