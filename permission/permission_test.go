package permission

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, name := range names {
		_, err := r.Register(name)
		require.NoError(t, err)
	}
	return r
}

func TestRegistryAssignsSequentialBits(t *testing.T) {
	r := newTestRegistry(t, "dashboard", "invoices")

	bit, ok := r.Bit("invoices")
	require.True(t, ok)
	assert.Equal(t, 1, bit)

	name, ok := r.Name(0)
	require.True(t, ok)
	assert.Equal(t, "dashboard", name)

	_, err := r.Register("invoices")
	assert.Error(t, err)
	_, err = r.Register("")
	assert.Error(t, err)

	r.Freeze()
	_, err = r.Register("leads")
	assert.Error(t, err)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryLimit(t *testing.T) {
	r := NewRegistry()
	for i := range MaxFeatures {
		_, err := r.Register(fmt.Sprintf("f%d", i))
		require.NoError(t, err)
	}
	_, err := r.Register("overflow")
	assert.Error(t, err)
}

func TestMaskOfAndNames(t *testing.T) {
	r := newTestRegistry(t, "a", "b", "c")

	m, err := r.MaskOf("c", "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(0b101), m.Raw())
	assert.Equal(t, []string{"a", "c"}, r.Names(m))

	_, err = r.MaskOf("missing")
	assert.Error(t, err)
}

func TestMask64(t *testing.T) {
	var m Mask64
	m.Set(3)
	m.Set(63)
	m.Set(64)
	m.Set(-1)
	assert.True(t, m.Has(3))
	assert.True(t, m.Has(63))
	assert.False(t, m.Has(64))
	assert.False(t, m.Has(-1))

	m.Clear(3)
	assert.False(t, m.Has(3))
	assert.True(t, m.Contains(Mask64(1<<63)))
	assert.False(t, m.Contains(Mask64(1<<2|1<<63)))
}

func TestEntitlements(t *testing.T) {
	r := newTestRegistry(t, "dashboard", "invoices", "automation")
	e := NewEntitlements(r)
	require.NoError(t, e.RegisterTier("free", []string{"dashboard"}))
	require.NoError(t, e.RegisterTier("pro", []string{"dashboard", "invoices"}))

	assert.True(t, e.Allows("free", "dashboard"))
	assert.False(t, e.Allows("free", "invoices"))
	assert.True(t, e.Allows("pro", "invoices"))
	assert.False(t, e.Allows("pro", "automation"))
	assert.False(t, e.Allows("unknown", "dashboard"))
	assert.False(t, e.Allows("pro", "unknown"))

	assert.Equal(t, []string{"dashboard", "invoices"}, e.Features("pro"))
	assert.Nil(t, e.Features("unknown"))
	assert.Equal(t, []string{"free", "pro"}, e.Tiers())

	assert.Error(t, e.RegisterTier("pro", nil))
	assert.Error(t, e.RegisterTier("", nil))
	assert.Error(t, e.RegisterTier("team", []string{"missing"}))

	e.Freeze()
	assert.Error(t, e.RegisterTier("enterprise", nil))
	assert.Equal(t, 2, e.Count())
}

func TestHierarchy(t *testing.T) {
	h, err := NewHierarchy([]string{"user", "manager", "admin"})
	require.NoError(t, err)

	tests := []struct {
		have, need string
		want       bool
	}{
		{"user", "", true},
		{"user", "user", true},
		{"user", "manager", false},
		{"admin", "manager", true},
		{"manager", "admin", false},
		{"ghost", "user", false},
		{"admin", "ghost", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.Satisfies(tt.have, tt.need), "%s needs %s", tt.have, tt.need)
	}

	rank, ok := h.Rank("manager")
	require.True(t, ok)
	assert.Equal(t, 1, rank)
	assert.Equal(t, []string{"user", "manager", "admin"}, h.Roles())

	_, err = NewHierarchy(nil)
	assert.Error(t, err)
	_, err = NewHierarchy([]string{"user", "user"})
	assert.Error(t, err)
}
