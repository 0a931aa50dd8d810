package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestAttemptLogBounded(t *testing.T) {
	log := NewAttemptLog(0)
	for i := range 12 {
		log.Begin("signin_a@x.io", now.Add(time.Duration(i)*time.Second))
	}
	got := log.Snapshot()
	require.Len(t, got, DefaultAttemptCapacity)
	assert.Equal(t, uint64(3), got[0].ID, "oldest two were evicted")
	assert.Equal(t, uint64(12), got[9].ID)
}

func TestAttemptLogBeginReturnsPriorHistory(t *testing.T) {
	log := NewAttemptLog(10)
	id1, before := log.Begin("k", now)
	assert.Empty(t, before)
	require.True(t, log.Resolve(id1, OutcomeFailure))

	id2, before := log.Begin("k", now.Add(time.Second))
	require.Len(t, before, 1)
	assert.Equal(t, OutcomeFailure, before[0].Outcome)

	before[0].Outcome = OutcomeSuccess
	assert.Equal(t, OutcomeFailure, log.Snapshot()[0].Outcome, "history is a copy")

	assert.Equal(t, OutcomePending, log.Snapshot()[1].Outcome)
	require.True(t, log.Resolve(id2, OutcomeSuccess))
	assert.Equal(t, OutcomeSuccess, log.Snapshot()[1].Outcome)
}

func TestAttemptLogResolveAfterClear(t *testing.T) {
	log := NewAttemptLog(10)
	id, _ := log.Begin("k", now)
	log.Clear()
	assert.False(t, log.Resolve(id, OutcomeFailure))
	assert.Zero(t, log.Len())
}

func failures(ats ...time.Time) []Attempt {
	out := make([]Attempt, 0, len(ats))
	for _, at := range ats {
		out = append(out, Attempt{At: at, Outcome: OutcomeFailure})
	}
	return out
}

func TestDetectSuspicious(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		attempts []Attempt
		want     bool
	}{
		{"none", nil, false},
		{"two failures", failures(now.Add(-time.Minute), now), false},
		{"three failures in window", failures(now.Add(-14*time.Minute), now.Add(-time.Minute), now), true},
		{"one failure outside window", failures(now.Add(-15*time.Minute), now.Add(-time.Minute), now), false},
		{"successes do not count", append(failures(now, now), Attempt{At: now, Outcome: OutcomeSuccess}, Attempt{At: now, Outcome: OutcomePending}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSuspicious(tt.attempts, now, cfg))
		})
	}
}

func TestScoreSignals(t *testing.T) {
	cfg := DefaultConfig()
	identity := &session.Identity{
		ID:               "u-1",
		EmailConfirmedAt: ptr(now.AddDate(0, -1, 0)),
		LastSignInAt:     ptr(now.Add(-24 * time.Hour)),
	}
	full := &profile.Profile{FullName: "Ada", BusinessName: "Acme", Industry: "Retail"}

	assert.Equal(t, 0, ComputeScore(nil, full, now, cfg))
	assert.Equal(t, 100, ComputeScore(identity, full, now, cfg))
	assert.Equal(t, 60, ComputeScore(identity, nil, now, cfg))

	withMetadata := identity.Clone()
	withMetadata.Metadata = map[string]any{"full_name": "Ada"}
	assert.Equal(t, 75, ComputeScore(withMetadata, nil, now, cfg))

	stale := identity.Clone()
	stale.LastSignInAt = ptr(now.Add(-8 * 24 * time.Hour))
	assert.Equal(t, 70, ComputeScore(stale, full, now, cfg))
}

func TestScoreMonotonicAndCapped(t *testing.T) {
	all := Signals{EmailConfirmed: true, HasFullName: true, HasBusinessName: true, HasIndustry: true, RecentSignIn: true}
	assert.Equal(t, MaxScore, all.Points())

	// Every subset scores no more than any superset of it.
	for mask := range 32 {
		s := signalsFromMask(mask)
		for bit := range 5 {
			super := signalsFromMask(mask | 1<<bit)
			assert.LessOrEqual(t, s.Points(), super.Points(), "mask %05b + bit %d", mask, bit)
			assert.LessOrEqual(t, super.Points(), MaxScore)
		}
	}
}

func signalsFromMask(mask int) Signals {
	return Signals{
		EmailConfirmed:  mask&1 != 0,
		HasFullName:     mask&2 != 0,
		HasBusinessName: mask&4 != 0,
		HasIndustry:     mask&8 != 0,
		RecentSignIn:    mask&16 != 0,
	}
}

func TestBuildReportAlertsAreRecomputed(t *testing.T) {
	cfg := DefaultConfig()
	identity := &session.Identity{ID: "u-1", LastSignInAt: ptr(now.Add(-31 * 24 * time.Hour))}

	r := BuildReport(Input{
		Identity: identity,
		Attempts: failures(now.Add(-2*time.Minute), now.Add(-time.Minute), now),
		Now:      now,
	}, cfg)
	require.Len(t, r.Alerts, 2)
	assert.Equal(t, AlertSuspiciousActivity, r.Alerts[0].Type)
	assert.Equal(t, AlertStaleLogin, r.Alerts[1].Type)
	assert.Equal(t, "No sign-in for more than 30 days.", r.Alerts[1].Message)
	assert.True(t, r.Suspicious)
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 3, r.Failures)

	identity.LastSignInAt = ptr(now)
	r = BuildReport(Input{Identity: identity, Now: now}, cfg)
	assert.Empty(t, r.Alerts)
	assert.False(t, r.Suspicious)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.FailureThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.StaleLogin = 0
	assert.Error(t, cfg.Validate())
}
