package permission

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Entitlements maps subscription tiers to the features they unlock.
//
// Entitlements are configured during initialization and then treated as
// immutable.
type Entitlements struct {
	registry *Registry

	mu     sync.RWMutex
	tiers  map[string]Mask64
	order  []string
	frozen bool
}

func NewEntitlements(registry *Registry) *Entitlements {
	return &Entitlements{
		registry: registry,
		tiers:    make(map[string]Mask64),
	}
}

// RegisterTier records the features unlocked by tier.
func (e *Entitlements) RegisterTier(tier string, features []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen {
		return errors.New("entitlements frozen")
	}
	if tier == "" {
		return errors.New("tier name empty")
	}
	if _, exists := e.tiers[tier]; exists {
		return fmt.Errorf("tier already registered: %s", tier)
	}

	mask, err := e.registry.MaskOf(features...)
	if err != nil {
		return fmt.Errorf("tier %s: %w", tier, err)
	}
	e.tiers[tier] = mask
	e.order = append(e.order, tier)
	return nil
}

// Mask returns the features of tier.
func (e *Entitlements) Mask(tier string) (Mask64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.tiers[tier]
	return m, ok
}

// Allows reports whether tier unlocks feature. Unknown tiers and features
// unlock nothing.
func (e *Entitlements) Allows(tier, feature string) bool {
	bit, ok := e.registry.Bit(feature)
	if !ok {
		return false
	}
	m, ok := e.Mask(tier)
	return ok && m.Has(bit)
}

// Features lists the features of tier in registration order.
func (e *Entitlements) Features(tier string) []string {
	m, ok := e.Mask(tier)
	if !ok {
		return nil
	}
	return e.registry.Names(m)
}

// Tiers lists the registered tiers in registration order.
func (e *Entitlements) Tiers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

func (e *Entitlements) Freeze() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen = true
}

func (e *Entitlements) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tiers)
}
