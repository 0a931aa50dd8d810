package rate

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *clock.Manual) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(Policy{MaxAttempts: max, Window: window}, clk.Now), clk
}

func TestAllowAdmitsUpToBudget(t *testing.T) {
	l, _ := newTestLimiter(3, 5*time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("otp_a@example.com"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("otp_a@example.com"))
	assert.Zero(t, l.Remaining("otp_a@example.com"))
}

func TestAllowRecoversAfterWindow(t *testing.T) {
	l, clk := newTestLimiter(2, time.Minute)

	require.True(t, l.Allow("k"))
	clk.Advance(10 * time.Second)
	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))

	clk.Advance(50 * time.Second)
	assert.True(t, l.Allow("k"), "oldest attempt left the window")
	assert.False(t, l.Allow("k"))
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	require.True(t, l.Allow("signin_a@example.com"))
	assert.False(t, l.Allow("signin_a@example.com"))
	assert.True(t, l.Allow("signin_b@example.com"))
}

func TestResetTimeTracksOldestAttempt(t *testing.T) {
	l, clk := newTestLimiter(2, time.Minute)
	start := clk.Now()

	assert.Equal(t, start, l.ResetTime("k"), "empty window resets now")

	require.True(t, l.Allow("k"))
	clk.Advance(20 * time.Second)
	require.True(t, l.Allow("k"))

	assert.Equal(t, start.Add(time.Minute), l.ResetTime("k"))
}

func TestResetTimeGapShrinksWhileDenied(t *testing.T) {
	l, clk := newTestLimiter(2, time.Minute)
	require.True(t, l.Allow("k"))
	require.True(t, l.Allow("k"))

	prev := time.Duration(1<<62 - 1)
	for i := 0; i < 5; i++ {
		require.False(t, l.Allow("k"))
		reset := l.ResetTime("k")
		require.False(t, reset.Before(clk.Now()), "reset time must not be in the past while denied")

		gap := reset.Sub(clk.Now())
		assert.Less(t, gap, prev)
		prev = gap
		clk.Advance(10 * time.Second)
	}
}

func TestRetryAfter(t *testing.T) {
	l, clk := newTestLimiter(1, time.Minute)

	assert.Zero(t, l.RetryAfter("k"))
	require.True(t, l.Allow("k"))

	clk.Advance(15 * time.Second)
	assert.Equal(t, 45*time.Second, l.RetryAfter("k"))
}

func TestResetForgetsKey(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	require.True(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestPruneDropsIdleKeys(t *testing.T) {
	l, clk := newTestLimiter(1, time.Minute)
	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Keys())

	clk.Advance(2 * time.Minute)
	assert.Zero(t, l.Keys())
}

func TestAllowIsAtomicUnderContention(t *testing.T) {
	l, _ := newTestLimiter(10, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, Policy{MaxAttempts: 1, Window: time.Second}.Validate())
	assert.ErrorIs(t, Policy{MaxAttempts: 0, Window: time.Second}.Validate(), ErrInvalidPolicy)
	assert.ErrorIs(t, Policy{MaxAttempts: 1}.Validate(), ErrInvalidPolicy)
}
