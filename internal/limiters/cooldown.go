package limiters

import (
	"sync"
	"time"

	"github.com/MrEthical07/goSession/clock"
)

// Cooldowns enforces a minimum gap between requests per principal, such as
// one-time-code resends. When a cooldown ends the ready callback runs on
// the scheduler's goroutine.
type Cooldowns struct {
	mu      sync.Mutex
	sched   clock.Scheduler
	period  time.Duration
	onReady func(principal string)
	entries map[string]cooldown
	// gen increases on every Start so a stale timer never matches a newer
	// entry, even after Reset.
	gen    uint64
	closed bool
}

type cooldown struct {
	until time.Time
	timer clock.Timer
	gen   uint64
}

// NewCooldowns returns a tracker with the given period. A nil onReady is
// allowed.
func NewCooldowns(sched clock.Scheduler, period time.Duration, onReady func(principal string)) *Cooldowns {
	if sched == nil {
		sched = clock.Real()
	}
	return &Cooldowns{
		sched:   sched,
		period:  period,
		onReady: onReady,
		entries: make(map[string]cooldown),
	}
}

// Period returns the configured gap.
func (c *Cooldowns) Period() time.Duration {
	return c.period
}

// Remaining returns how long principal must still wait.
func (c *Cooldowns) Remaining(principal string) time.Duration {
	key := normalize(principal)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0
	}
	left := e.until.Sub(c.sched.Now())
	if left <= 0 {
		return 0
	}
	return left
}

// Start begins a cooldown for principal, replacing any running one. It is
// a no-op when the period is not positive or the tracker is closed.
func (c *Cooldowns) Start(principal string) {
	if c.period <= 0 {
		return
	}
	key := normalize(principal)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev, ok := c.entries[key]
	if ok && prev.timer != nil {
		prev.timer.Stop()
	}
	c.gen++
	gen := c.gen
	e := cooldown{until: c.sched.Now().Add(c.period), gen: gen}
	e.timer = c.sched.AfterFunc(c.period, func() { c.expire(key, gen) })
	c.entries[key] = e
}

func (c *Cooldowns) expire(key string, gen uint64) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.entries, key)
	onReady := c.onReady
	c.mu.Unlock()

	if onReady != nil {
		onReady(key)
	}
}

// Active returns the number of running cooldowns.
func (c *Cooldowns) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset cancels every running cooldown without firing ready callbacks.
func (c *Cooldowns) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.entries, key)
	}
}

// Close resets the tracker and rejects further cooldowns. Idempotent.
func (c *Cooldowns) Close() {
	c.Reset()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
