package authclient

import (
	"fmt"
	"strings"
)

// AccessRequirement is the per route authentication requirement
type AccessRequirement int

const (
	// AccessInherit takes the parent's requirement, AccessNone at the top level
	AccessInherit AccessRequirement = iota
	AccessNone
	AccessRequiresAuth
	AccessRequiresGuest
)

func (a AccessRequirement) String() string {
	switch a {
	case AccessNone:
		return "none"
	case AccessRequiresAuth:
		return "requires_auth"
	case AccessRequiresGuest:
		return "requires_guest"
	default:
		return "inherit"
	}
}

// CatchAllPath marks a route that matches anything below its parent
const CatchAllPath = "*"

// Route is a declared route. Children join their path to the parent's.
type Route struct {
	Name     string
	Path     string
	Access   AccessRequirement
	Meta     map[string]any
	Redirect string
	Children []Route
}

// ResolvedRoute is a flattened route with its effective access
type ResolvedRoute struct {
	Name     string
	Path     string
	Access   AccessRequirement
	Meta     map[string]any
	Redirect string
}

func (r ResolvedRoute) catchAll() bool {
	return r.Path == "/"+CatchAllPath || strings.HasSuffix(r.Path, "/"+CatchAllPath)
}

// RouteTable indexes routes by name and path.
type RouteTable struct {
	routes    []ResolvedRoute
	byName    map[string]int
	byPath    map[string]int
	catchAlls []int
}

// NewRouteTable flattens routes. Route names must be unique.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	t := &RouteTable{
		byName: map[string]int{},
		byPath: map[string]int{},
	}

	if err := t.add(routes, "", AccessNone); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *RouteTable) add(routes []Route, parent string, inherited AccessRequirement) error {
	for _, r := range routes {
		access := r.Access
		if access == AccessInherit {
			access = inherited
		}

		resolved := ResolvedRoute{
			Name:     r.Name,
			Path:     joinPath(parent, r.Path),
			Access:   access,
			Meta:     r.Meta,
			Redirect: r.Redirect,
		}

		idx := len(t.routes)
		t.routes = append(t.routes, resolved)

		if r.Name != "" {
			if _, exists := t.byName[r.Name]; exists {
				return fmt.Errorf("duplicate route name %q", r.Name)
			}
			t.byName[r.Name] = idx
		}

		if resolved.catchAll() {
			t.catchAlls = append(t.catchAlls, idx)
		} else {
			// a child with an empty path shadows its layout
			t.byPath[resolved.Path] = idx
		}

		if err := t.add(r.Children, resolved.Path, access); err != nil {
			return err
		}
	}
	return nil
}

// Lookup resolves a route name or an absolute path
func (t *RouteTable) Lookup(target string) (ResolvedRoute, bool) {
	if target == "" {
		return ResolvedRoute{}, false
	}

	if !strings.HasPrefix(target, "/") {
		if idx, ok := t.byName[target]; ok {
			return t.routes[idx], true
		}
		return ResolvedRoute{}, false
	}

	path := normalizePath(target)
	if idx, ok := t.byPath[path]; ok {
		return t.routes[idx], true
	}

	best, bestLen := -1, -1
	for _, idx := range t.catchAlls {
		prefix := strings.TrimSuffix(t.routes[idx].Path, CatchAllPath)
		if strings.HasPrefix(path+"/", prefix) && len(prefix) > bestLen {
			best, bestLen = idx, len(prefix)
		}
	}
	if best >= 0 {
		r := t.routes[best]
		r.Path = path
		return r, true
	}

	return ResolvedRoute{}, false
}

// Routes returns the flattened table in declaration order
func (t *RouteTable) Routes() []ResolvedRoute {
	out := make([]ResolvedRoute, len(t.routes))
	copy(out, t.routes)
	return out
}

func joinPath(parent, child string) string {
	if strings.HasPrefix(child, "/") {
		return normalizePath(child)
	}
	if child == "" {
		if parent == "" {
			return "/"
		}
		return parent
	}
	return normalizePath(strings.TrimRight(parent, "/") + "/" + child)
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Outcome of a guard evaluation
type Outcome int

const (
	Allowed Outcome = iota
	Redirected
	Blocked
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Redirected:
		return "redirected"
	default:
		return "blocked"
	}
}

// Decision is the guard verdict for a navigation
type Decision struct {
	Outcome Outcome
	Target  string
	Route   ResolvedRoute
}

// Guard decides whether a navigation may proceed based on the route
// requirement and the current authentication state.
type Guard struct {
	routes  *RouteTable
	auth    AuthState
	login   string
	landing string
}

// GuardOption customizes Guard construction.
type GuardOption func(*Guard)

// WithGuardLoginRoute sets where unauthenticated users are sent
func WithGuardLoginRoute(name string) GuardOption {
	return func(g *Guard) {
		if name != "" {
			g.login = name
		}
	}
}

// WithGuardLandingRoute sets where authenticated users are sent away from guest routes
func WithGuardLandingRoute(name string) GuardOption {
	return func(g *Guard) {
		if name != "" {
			g.landing = name
		}
	}
}

// NewGuard builds a guard reading auth on every evaluation
func NewGuard(routes *RouteTable, auth AuthState, opts ...GuardOption) *Guard {
	g := &Guard{
		routes:  routes,
		auth:    auth,
		login:   DefaultLoginRoute,
		landing: DefaultLandingRoute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Evaluate never errors and never touches the session.
func (g *Guard) Evaluate(target string) Decision {
	route, ok := g.routes.Lookup(target)
	if !ok {
		return Decision{Outcome: Blocked, Target: target}
	}

	if route.Redirect != "" {
		return Decision{Outcome: Redirected, Target: route.Redirect, Route: route}
	}

	authenticated := g.auth != nil && g.auth.IsAuthenticated()

	switch route.Access {
	case AccessRequiresAuth:
		if !authenticated {
			return Decision{Outcome: Redirected, Target: g.login, Route: route}
		}
	case AccessRequiresGuest:
		if authenticated {
			return Decision{Outcome: Redirected, Target: g.landing, Route: route}
		}
	}

	return Decision{Outcome: Allowed, Target: target, Route: route}
}

// DefaultRoutes is the route table of the dashboard application
func DefaultRoutes() []Route {
	return []Route{
		{
			Name:   "Login",
			Path:   "/auth/login",
			Access: AccessRequiresGuest,
			Meta:   map[string]any{"title": "Login"},
		},
		{
			Name:   "Register",
			Path:   "/auth/register",
			Access: AccessRequiresGuest,
			Meta:   map[string]any{"title": "Register"},
		},
		{
			Path:   "/",
			Access: AccessRequiresAuth,
			Children: []Route{
				{Name: "Dashboard", Path: "", Meta: map[string]any{"title": "Dashboard"}},
				{Name: "Payments", Path: "payments", Meta: map[string]any{"title": "Payments"}},
				{Name: "Profile", Path: "profile", Meta: map[string]any{"title": "Profile"}},
				{Path: CatchAllPath, Redirect: "Dashboard"},
			},
		},
	}
}
