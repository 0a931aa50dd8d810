package permission

import (
	"errors"
	"fmt"
	"slices"
)

// Hierarchy orders roles from least to most privileged. A role satisfies a
// requirement for any role at or below it.
type Hierarchy struct {
	rank  map[string]int
	roles []string
}

// NewHierarchy builds a hierarchy from roles, least privileged first.
func NewHierarchy(roles []string) (*Hierarchy, error) {
	if len(roles) == 0 {
		return nil, errors.New("role hierarchy empty")
	}
	h := &Hierarchy{rank: make(map[string]int, len(roles)), roles: slices.Clone(roles)}
	for i, role := range roles {
		if role == "" {
			return nil, errors.New("role name empty")
		}
		if _, dup := h.rank[role]; dup {
			return nil, fmt.Errorf("role listed twice: %s", role)
		}
		h.rank[role] = i
	}
	return h, nil
}

// Rank returns the position of role, or false when it is unknown.
func (h *Hierarchy) Rank(role string) (int, bool) {
	r, ok := h.rank[role]
	return r, ok
}

// Satisfies reports whether have meets need. An empty need is always met;
// unknown roles never meet a non-empty need.
func (h *Hierarchy) Satisfies(have, need string) bool {
	if need == "" {
		return true
	}
	hr, ok := h.rank[have]
	if !ok {
		return false
	}
	nr, ok := h.rank[need]
	return ok && hr >= nr
}

// Roles lists the roles, least privileged first.
func (h *Hierarchy) Roles() []string {
	return slices.Clone(h.roles)
}
