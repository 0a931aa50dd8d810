// Package profile keeps the application-owned user profile in step with the
// provider identity.
//
// Every string that reaches a [Store] has passed through the [Sanitizer];
// stores may therefore persist values verbatim.
package profile

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no row exists for the id.
	ErrNotFound = errors.New("profile not found")
	// ErrAlreadyExists is returned by Store.Insert when the id is taken.
	ErrAlreadyExists = errors.New("profile already exists")
)

// Profile is the application's record for one identity, keyed 1:1 by the
// identity id.
type Profile struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	FullName         string            `json:"full_name,omitempty"`
	BusinessName     string            `json:"business_name,omitempty"`
	Industry         string            `json:"industry,omitempty"`
	TeamSize         string            `json:"team_size,omitempty"`
	RevenueRange     string            `json:"revenue_range,omitempty"`
	Bio              string            `json:"bio,omitempty"`
	Tools            []string          `json:"tools,omitempty"`
	Settings         map[string]string `json:"settings,omitempty"`
	Role             string            `json:"role"`
	SubscriptionTier string            `json:"subscription_tier"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Tools = slices.Clone(p.Tools)
	if p.Settings != nil {
		out.Settings = maps.Clone(p.Settings)
	}
	return &out
}

// Fields are the user-supplied attributes of a new profile.
type Fields struct {
	Email        string
	FullName     string
	BusinessName string
	Industry     string
	TeamSize     string
	RevenueRange string
	Bio          string
	Tools        []string
	Settings     map[string]string
}

// Patch lists profile attributes to change. Nil pointers and a nil Settings
// map leave the stored value untouched.
type Patch struct {
	FullName     *string
	BusinessName *string
	Industry     *string
	TeamSize     *string
	RevenueRange *string
	Bio          *string
	Tools        *[]string
	Settings     map[string]string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.FullName == nil && p.BusinessName == nil && p.Industry == nil &&
		p.TeamSize == nil && p.RevenueRange == nil && p.Bio == nil &&
		p.Tools == nil && p.Settings == nil
}

// Apply writes the patch onto a copy of p.
func (p Patch) Apply(base *Profile) *Profile {
	out := base.Clone()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&out.FullName, p.FullName)
	set(&out.BusinessName, p.BusinessName)
	set(&out.Industry, p.Industry)
	set(&out.TeamSize, p.TeamSize)
	set(&out.RevenueRange, p.RevenueRange)
	set(&out.Bio, p.Bio)
	if p.Tools != nil {
		out.Tools = slices.Clone(*p.Tools)
	}
	if p.Settings != nil {
		out.Settings = maps.Clone(p.Settings)
	}
	return out
}

// Store persists profiles keyed by identity id.
type Store interface {
	// Select returns ErrNotFound when no profile exists for id.
	Select(ctx context.Context, id string) (*Profile, error)
	// Insert returns ErrAlreadyExists when a profile exists for p.ID.
	Insert(ctx context.Context, p *Profile) error
	// Update replaces the mutable attributes of the stored profile and
	// returns ErrNotFound when no profile exists for p.ID.
	Update(ctx context.Context, p *Profile) error
	// Delete removes the profile for id. Deleting a missing profile is not
	// an error.
	Delete(ctx context.Context, id string) error
}

// FieldsFromMetadata maps provider sign-up metadata onto profile fields.
func FieldsFromMetadata(email string, metadata map[string]any) Fields {
	str := func(key string) string {
		v, _ := metadata[key].(string)
		return v
	}
	return Fields{
		Email:        email,
		FullName:     str("full_name"),
		BusinessName: str("business_name"),
		Industry:     str("industry"),
		TeamSize:     str("team_size"),
		RevenueRange: str("revenue_range"),
	}
}

// Metadata is the inverse of FieldsFromMetadata for the attributes sent to
// the provider at sign-up.
func (f Fields) Metadata() map[string]any {
	out := map[string]any{}
	put := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	put("full_name", f.FullName)
	put("business_name", f.BusinessName)
	put("industry", f.Industry)
	put("team_size", f.TeamSize)
	put("revenue_range", f.RevenueRange)
	return out
}
