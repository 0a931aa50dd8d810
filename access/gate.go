// Package access decides whether the current user may enter a route or use
// a feature, and where to send them when not.
package access

import (
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/permission"
)

// Outcome is the kind of decision.
type Outcome int

const (
	// Pending means the initial session probe has not finished. Callers
	// must wait and evaluate again, never redirect.
	Pending Outcome = iota
	Allow
	RedirectSignIn
	RedirectUnauthorized
	RedirectUpgrade
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectSignIn:
		return "redirect_sign_in"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case RedirectUpgrade:
		return "redirect_upgrade"
	default:
		return "unknown"
	}
}

// Routes are the redirect destinations.
type Routes struct {
	SignIn       string `yaml:"sign_in"`
	Unauthorized string `yaml:"unauthorized"`
	Upgrade      string `yaml:"upgrade"`
	// ReturnParam is the query parameter that carries the intended
	// destination on the sign-in redirect.
	ReturnParam string `yaml:"return_param"`
}

// DefaultRoutes returns the default destinations.
func DefaultRoutes() Routes {
	return Routes{
		SignIn:       "/auth/signin",
		Unauthorized: "/unauthorized",
		Upgrade:      "/pricing",
		ReturnParam:  "returnTo",
	}
}

// Subject is the caller as seen by the gate.
type Subject struct {
	// Loading is true until the initial probe and subscription complete.
	Loading       bool
	Authenticated bool
	Role          string
	Tier          string
	// Destination is where the caller was going.
	Destination string
}

// Requirement is what a route demands. Empty fields demand nothing beyond
// authentication.
type Requirement struct {
	Role    string
	Feature string
}

// Decision is the gate's verdict.
type Decision struct {
	Outcome  Outcome
	Location string
	// ReturnTo is the preserved destination on a sign-in redirect.
	ReturnTo string
	Reason   string
}

// Redirect reports whether the decision sends the caller elsewhere.
func (d Decision) Redirect() bool {
	return d.Outcome == RedirectSignIn || d.Outcome == RedirectUnauthorized || d.Outcome == RedirectUpgrade
}

// Gate evaluates requirements against roles and tier entitlements.
type Gate struct {
	routes       Routes
	roles        *permission.Hierarchy
	entitlements *permission.Entitlements
}

// NewGate returns a gate. Empty routes fall back to DefaultRoutes.
func NewGate(routes Routes, roles *permission.Hierarchy, entitlements *permission.Entitlements) *Gate {
	def := DefaultRoutes()
	if routes.SignIn == "" {
		routes.SignIn = def.SignIn
	}
	if routes.Unauthorized == "" {
		routes.Unauthorized = def.Unauthorized
	}
	if routes.Upgrade == "" {
		routes.Upgrade = def.Upgrade
	}
	if routes.ReturnParam == "" {
		routes.ReturnParam = def.ReturnParam
	}
	return &Gate{routes: routes, roles: roles, entitlements: entitlements}
}

// Routes returns the configured destinations.
func (g *Gate) Routes() Routes {
	return g.routes
}

// HasRole reports whether role satisfies need.
func (g *Gate) HasRole(role, need string) bool {
	if need == "" {
		return true
	}
	if g.roles == nil {
		return role == need
	}
	return g.roles.Satisfies(role, need)
}

// CanAccess reports whether tier unlocks feature.
func (g *Gate) CanAccess(tier, feature string) bool {
	if feature == "" {
		return true
	}
	return g.entitlements != nil && g.entitlements.Allows(tier, feature)
}

// Evaluate decides. Order: loading, authentication, role, feature.
func (g *Gate) Evaluate(s Subject, req Requirement) Decision {
	switch {
	case s.Loading:
		return Decision{Outcome: Pending, Reason: "session loading"}
	case !s.Authenticated:
		return Decision{
			Outcome:  RedirectSignIn,
			Location: g.signInLocation(s.Destination),
			ReturnTo: safeDestination(s.Destination),
			Reason:   "not authenticated",
		}
	case !g.HasRole(s.Role, req.Role):
		return Decision{Outcome: RedirectUnauthorized, Location: g.routes.Unauthorized, Reason: "requires role " + req.Role}
	case !g.CanAccess(s.Tier, req.Feature):
		return Decision{Outcome: RedirectUpgrade, Location: g.routes.Upgrade, Reason: "requires feature " + req.Feature}
	default:
		return Decision{Outcome: Allow}
	}
}

func (g *Gate) signInLocation(destination string) string {
	dest := safeDestination(destination)
	if dest == "" {
		return g.routes.SignIn
	}
	sep := "?"
	if strings.Contains(g.routes.SignIn, "?") {
		sep = "&"
	}
	return g.routes.SignIn + sep + url.Values{g.routes.ReturnParam: {dest}}.Encode()
}

// safeDestination keeps only same-site absolute paths so the return
// parameter cannot be turned into an open redirect.
func safeDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") || strings.Contains(dest, `\`) {
		return ""
	}
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return dest
}
