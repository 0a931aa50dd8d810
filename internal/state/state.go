// Package state holds the single identity/session/profile cell the engine
// exposes to readers.
//
// The cell is written by exactly one goroutine (the lifecycle loop). Every
// write replaces the whole snapshot, so a reader can never observe a session
// without its matching identity.
package state

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

// Status is the derived authentication readiness.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Snapshot is an immutable view of the current user. Callers must treat the
// pointed-to values as read-only.
type Snapshot struct {
	Identity *session.Identity
	Session  *session.Session
	Profile  *profile.Profile
	// Ready is set once the initial probe and the provider subscription are
	// both complete.
	Ready     bool
	Version   uint64
	UpdatedAt time.Time
}

// Status projects the snapshot onto loading, authenticated or
// unauthenticated.
func (s Snapshot) Status() Status {
	switch {
	case !s.Ready:
		return StatusLoading
	case s.Identity != nil:
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

// SignedOut returns s with identity, session and profile cleared together.
func (s Snapshot) SignedOut() Snapshot {
	s.Identity = nil
	s.Session = nil
	s.Profile = nil
	return s
}

// Observer is called with every new snapshot.
type Observer func(Snapshot)

// Cell stores the current snapshot and fans changes out to observers.
type Cell struct {
	mu        sync.RWMutex
	current   Snapshot
	observers map[int]Observer
	nextID    int
}

// NewCell returns a cell holding the zero (loading) snapshot.
func NewCell() *Cell {
	return &Cell{observers: make(map[int]Observer)}
}

// Load returns the current snapshot.
func (c *Cell) Load() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Replace installs next as the current snapshot, bumping its version, and
// notifies observers in subscription order on the calling goroutine.
func (c *Cell) Replace(next Snapshot) Snapshot {
	c.mu.Lock()
	next.Version = c.current.Version + 1
	c.current = next
	observers := c.observersLocked()
	c.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
	return next
}

// Subscribe registers fn and returns a function that removes it. Observers
// must not block and must not call back into the engine synchronously.
func (c *Cell) Subscribe(fn Observer) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cell) observersLocked() []Observer {
	out := make([]Observer, 0, len(c.observers))
	for _, id := range slices.Sorted(maps.Keys(c.observers)) {
		out = append(out, c.observers[id])
	}
	return out
}
