package authclient

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// DefaultMaxRedirects bounds a guard redirect chain
const DefaultMaxRedirects = 8

// Location is where the router currently is
type Location struct {
	Name string         `json:"name,omitempty"`
	Path string         `json:"path"`
	Meta map[string]any `json:"meta,omitempty"`
}

// IsZero reports whether no navigation happened yet
func (l Location) IsZero() bool {
	return l.Path == "" && l.Name == ""
}

// AfterEachFunc runs after a navigation settles
type AfterEachFunc func(ctx context.Context, to, from Location)

// Router is a Navigator that runs every navigation through a Guard.
// Redirects replace the pending navigation, they are never recorded.
type Router struct {
	mu           sync.Mutex
	guard        *Guard
	current      Location
	history      []Location
	hooks        []AfterEachFunc
	maxRedirects int
	logger       Logger
}

var _ Navigator = (*Router)(nil)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// WithMaxRedirects overrides DefaultMaxRedirects
func WithMaxRedirects(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.maxRedirects = n
		}
	}
}

// WithAfterEach registers a hook, see Router.AfterEach
func WithAfterEach(fn AfterEachFunc) RouterOption {
	return func(r *Router) {
		if fn != nil {
			r.hooks = append(r.hooks, fn)
		}
	}
}

// WithRouterLogger overrides the logger.
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter builds a router around guard
func NewRouter(guard *Guard, opts ...RouterOption) *Router {
	r := &Router{
		guard:        guard,
		maxRedirects: DefaultMaxRedirects,
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// AfterEach registers a hook called after every settled navigation
func (r *Router) AfterEach(fn AfterEachFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Push navigates to a route name or path
func (r *Router) Push(ctx context.Context, target string) error {
	_, err := r.navigate(ctx, target, false)
	return err
}

// Resolve navigates and returns where the router ended up
func (r *Router) Resolve(ctx context.Context, target string) (Location, error) {
	return r.navigate(ctx, target, false)
}

// HardNavigate drops history before navigating, like a full page load.
func (r *Router) HardNavigate(ctx context.Context, target string) error {
	_, err := r.navigate(ctx, target, true)
	return err
}

// Current returns the current location
func (r *Router) Current() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns previously visited locations, oldest first
func (r *Router) History() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Location, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Router) navigate(ctx context.Context, target string, hard bool) (Location, error) {
	requested := target

	var decision Decision
	for redirects := 0; ; redirects++ {
		if redirects > r.maxRedirects {
			return Location{}, errors.Wrapf(ErrRedirectLoop, "navigating to %s", requested)
		}

		decision = r.guard.Evaluate(target)
		if decision.Outcome != Redirected {
			break
		}

		r.logger.Debug("navigation redirected", "from", target, "to", decision.Target)
		target = decision.Target
	}

	if decision.Outcome == Blocked {
		return Location{}, errors.Wrapf(ErrRouteNotFound, "%s", target)
	}

	to := Location{
		Name: decision.Route.Name,
		Path: decision.Route.Path,
		Meta: decision.Route.Meta,
	}

	r.mu.Lock()
	from := r.current
	if hard {
		r.history = nil
		from = Location{}
	} else if !from.IsZero() {
		r.history = append(r.history, from)
	}
	r.current = to
	hooks := make([]AfterEachFunc, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx, to, from)
	}

	return to, nil
}
