package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

func TestStatusProjection(t *testing.T) {
	id := &session.Identity{ID: "u-1"}

	assert.Equal(t, StatusLoading, Snapshot{}.Status())
	assert.Equal(t, StatusLoading, Snapshot{Identity: id}.Status(), "identity before ready is still loading")
	assert.Equal(t, StatusUnauthenticated, Snapshot{Ready: true}.Status())
	assert.Equal(t, StatusAuthenticated, Snapshot{Ready: true, Identity: id}.Status())
}

func TestSignedOutClearsTriple(t *testing.T) {
	s := Snapshot{
		Identity: &session.Identity{ID: "u-1"},
		Session:  &session.Session{AccessToken: "a"},
		Profile:  &profile.Profile{ID: "u-1"},
		Ready:    true,
		Version:  4,
	}
	out := s.SignedOut()
	assert.Nil(t, out.Identity)
	assert.Nil(t, out.Session)
	assert.Nil(t, out.Profile)
	assert.True(t, out.Ready)
	assert.Equal(t, uint64(4), out.Version)
}

func TestReplaceBumpsVersionAndNotifiesInOrder(t *testing.T) {
	c := NewCell()
	var order []string
	c.Subscribe(func(s Snapshot) { order = append(order, "a") })
	c.Subscribe(func(s Snapshot) { order = append(order, "b") })

	first := c.Replace(Snapshot{Ready: true})
	second := c.Replace(Snapshot{Ready: true, Identity: &session.Identity{ID: "u-1"}})

	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, second, c.Load())
	assert.Equal(t, []string{"a", "b", "a", "b"}, order)
}

func TestNotifyOrderSurvivesChurn(t *testing.T) {
	c := NewCell()
	var order []string
	c.Subscribe(func(Snapshot) { order = append(order, "first") })
	for range 1000 {
		c.Subscribe(func(Snapshot) { t.Error("cancelled observer ran") })()
	}
	c.Subscribe(func(Snapshot) { order = append(order, "last") })

	c.Replace(Snapshot{})
	assert.Equal(t, []string{"first", "last"}, order)
	assert.Len(t, c.observersLocked(), 2)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	c := NewCell()
	calls := 0
	unsubscribe := c.Subscribe(func(Snapshot) { calls++ })

	c.Replace(Snapshot{})
	unsubscribe()
	unsubscribe()
	c.Replace(Snapshot{})

	assert.Equal(t, 1, calls)
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	c := NewCell()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := c.Load()
				if s.Session != nil {
					if !assert.NotNil(t, s.Identity) {
						return
					}
					assert.Equal(t, s.Identity.ID, s.Session.Identity.ID)
				}
			}
		}()
	}

	for i := range 500 {
		if i%2 == 0 {
			id := session.Identity{ID: "u-1"}
			c.Replace(Snapshot{Ready: true, Identity: &id, Session: &session.Session{Identity: id}})
		} else {
			c.Replace(Snapshot{Ready: true})
		}
	}
	close(stop)
	wg.Wait()
}
