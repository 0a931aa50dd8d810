package rate

import (
	"sync"
	"time"
)

// Policy holds the attempt budget for one operation class.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

// Validate reports whether the policy can admit anything at all.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 || p.Window <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Limiter enforces a sliding-window budget independently per key.
type Limiter struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// New creates a sliding-window [Limiter]. A nil now defaults to time.Now.
func New(policy Policy, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		policy:   policy,
		now:      now,
		attempts: make(map[string][]time.Time),
	}
}

// Policy returns the limiter's configured policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow evaluates and records an attempt for key atomically. It returns false
// when MaxAttempts admitted attempts already fall inside the trailing window.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.pruneLocked(key, now)
	if len(window) >= l.policy.MaxAttempts {
		return false
	}

	l.attempts[key] = append(window, now)
	return true
}

// ResetTime returns the instant at which the oldest attempt in key's window
// leaves it. With no attempts in the window it returns now.
func (l *Limiter) ResetTime(key string) time.Time {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.pruneLocked(key, now)
	if len(window) == 0 {
		return now
	}
	return window[0].Add(l.policy.Window)
}

// RetryAfter returns how long a caller denied for key has to wait. It is zero
// when the key currently has budget left.
func (l *Limiter) RetryAfter(key string) time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.pruneLocked(key, now)
	if len(window) < l.policy.MaxAttempts {
		return 0
	}
	wait := window[0].Add(l.policy.Window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Remaining returns the number of attempts key may still make in the window.
func (l *Limiter) Remaining(key string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	left := l.policy.MaxAttempts - len(l.pruneLocked(key, now))
	if left < 0 {
		return 0
	}
	return left
}

// Reset forgets every attempt recorded for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// Keys returns the number of keys with attempts inside their window.
func (l *Limiter) Keys() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key := range l.attempts {
		if len(l.pruneLocked(key, now)) > 0 {
			n++
		}
	}
	return n
}

// pruneLocked drops attempts older than the window and returns the survivors.
// Empty keys are removed so idle principals do not accumulate.
func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	list := l.attempts[key]
	cutoff := now.Add(-l.policy.Window)

	i := 0
	for i < len(list) && !list[i].After(cutoff) {
		i++
	}
	if i == len(list) {
		delete(l.attempts, key)
		return nil
	}
	if i > 0 {
		list = append(list[:0:0], list[i:]...)
		l.attempts[key] = list
	}
	return list
}
