package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var fired []string
	m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	m.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	m.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	m.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, start.Add(5*time.Second), m.Now())
}

func TestManualStopPreventsFire(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	called := false
	timer := m.AfterFunc(time.Second, func() { called = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.Advance(time.Minute)
	assert.False(t, called)
	assert.Zero(t, m.Pending())
}

func TestManualFiresTimersArmedByCallbacks(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	count := 0
	var arm func()
	arm = func() {
		count++
		if count < 3 {
			m.AfterFunc(time.Second, arm)
		}
	}
	m.AfterFunc(time.Second, arm)

	m.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
}

func TestManualSetNeverMovesBackwards(t *testing.T) {
	start := time.Unix(100, 0)
	m := NewManual(start)
	m.Set(start.Add(-time.Hour))
	assert.Equal(t, start, m.Now())
}
