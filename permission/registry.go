package permission

import (
	"errors"
	"fmt"
	"sync"
)

// MaxFeatures is the number of bits a Mask64 can hold.
const MaxFeatures = 64

// Registry maps feature names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// Register assigns the next free bit to name and returns it. Must be called
// before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if name == "" {
		return -1, errors.New("feature name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, fmt.Errorf("feature already registered: %s", name)
	}

	next := len(r.nameToBit)
	if next >= MaxFeatures {
		return -1, errors.New("feature limit exceeded")
	}
	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit index for the named feature, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the feature name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// MaskOf returns the mask with the bits of every named feature set.
func (r *Registry) MaskOf(names ...string) (Mask64, error) {
	var m Mask64
	for _, name := range names {
		bit, ok := r.Bit(name)
		if !ok {
			return 0, fmt.Errorf("feature not registered: %s", name)
		}
		m.Set(bit)
	}
	return m, nil
}

// Names lists the features set in m in bit order.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for bit := range MaxFeatures {
		if m.Has(bit) {
			if name, ok := r.bitToName[bit]; ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered features.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
