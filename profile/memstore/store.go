// Package memstore is an in-memory profile.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/MrEthical07/goSession/profile"
)

// Operation names accepted by Fail.
const (
	OpSelect = "select"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Store keeps profiles in a map. Returned profiles are copies.
type Store struct {
	mu       sync.RWMutex
	rows     map[string]*profile.Profile
	failures map[string][]error
}

func New() *Store {
	return &Store{
		rows:     make(map[string]*profile.Profile),
		failures: make(map[string][]error),
	}
}

var _ profile.Store = (*Store)(nil)

// Fail queues err as the result of the next op call.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *Store) Select(ctx context.Context, id string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(ctx, OpSelect); err != nil {
		return nil, err
	}
	p, ok := s.rows[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) Insert(ctx context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(ctx, OpInsert); err != nil {
		return err
	}
	if _, ok := s.rows[p.ID]; ok {
		return profile.ErrAlreadyExists
	}
	s.rows[p.ID] = p.Clone()
	return nil
}

func (s *Store) Update(ctx context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(ctx, OpUpdate); err != nil {
		return err
	}
	current, ok := s.rows[p.ID]
	if !ok {
		return profile.ErrNotFound
	}
	next := p.Clone()
	next.CreatedAt = current.CreatedAt
	next.Role = current.Role
	next.SubscriptionTier = current.SubscriptionTier
	s.rows[p.ID] = next
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(ctx, OpDelete); err != nil {
		return err
	}
	delete(s.rows, id)
	return nil
}

// Put stores p as-is, bypassing sanitization. Intended for seeding tests
// with rows such as a non-default role or tier.
func (s *Store) Put(p *profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.ID] = p.Clone()
}

func (s *Store) failLocked(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}
