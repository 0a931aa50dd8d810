package security

import (
	"slices"
	"sync"
	"time"
)

// Outcome is the result of a sign-in attempt.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// DefaultAttemptCapacity is how many attempts an AttemptLog keeps.
const DefaultAttemptCapacity = 10

// Attempt is one sign-in attempt.
type Attempt struct {
	ID      uint64
	Key     string
	At      time.Time
	Outcome Outcome
}

// AttemptLog keeps the most recent sign-in attempts, oldest first.
type AttemptLog struct {
	mu       sync.Mutex
	capacity int
	nextID   uint64
	entries  []Attempt
}

// NewAttemptLog returns a log holding at most capacity attempts. A
// non-positive capacity uses DefaultAttemptCapacity.
func NewAttemptLog(capacity int) *AttemptLog {
	if capacity <= 0 {
		capacity = DefaultAttemptCapacity
	}
	return &AttemptLog{capacity: capacity}
}

// Begin appends a pending attempt and returns its id together with the
// history as it was before the append.
func (l *AttemptLog) Begin(key string, at time.Time) (uint64, []Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := slices.Clone(l.entries)
	l.nextID++
	l.entries = append(l.entries, Attempt{ID: l.nextID, Key: key, At: at, Outcome: OutcomePending})
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = slices.Delete(l.entries, 0, over)
	}
	return l.nextID, before
}

// Resolve sets the outcome of attempt id in place. It reports false when the
// attempt has already been evicted or the log was cleared.
func (l *AttemptLog) Resolve(id uint64, outcome Outcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Outcome = outcome
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the retained attempts, oldest first.
func (l *AttemptLog) Snapshot() []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Len returns the number of retained attempts.
func (l *AttemptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every attempt.
func (l *AttemptLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
