package steps

import (
	"time"

	"github.com/entgraph/entgraph/internal/cache"
)

// Route is the per-step execution policy: how long one attempt may take
// and how long its cached result stays fresh.
type Route struct {
	// Timeout bounds a single execution attempt. Zero means no
	// per-attempt bound beyond the session context.
	Timeout time.Duration
	// CacheTTL is how long this step's result stays cached.
	CacheTTL time.Duration
}

// Router maps step names to routes, with a default for unlisted steps.
type Router struct {
	routes map[string]Route
	def    Route
}

// NewRouter creates a router with the given default route.
func NewRouter(def Route) *Router {
	return &Router{routes: make(map[string]Route), def: def}
}

// Set overrides the route for one step.
func (r *Router) Set(step string, route Route) {
	r.routes[step] = route
}

// RouteFor returns the route for a step, falling back to the default.
func (r *Router) RouteFor(step string) Route {
	if route, ok := r.routes[step]; ok {
		return route
	}
	return r.def
}

// DefaultRouter mirrors the routing the original deployment used: cheap
// normalization is cached for a week, volatile news only for hours, and
// document parsing gets the longest attempt timeout. TTLs use the cache
// policy shorthand.
func DefaultRouter(defaultTTL time.Duration) *Router {
	r := NewRouter(Route{Timeout: 30 * time.Second, CacheTTL: defaultTTL})
	r.Set(StepNormalize, Route{Timeout: 5 * time.Second, CacheTTL: mustTTL("7d")})
	r.Set(StepIdentify, Route{Timeout: 15 * time.Second, CacheTTL: mustTTL("7d")})
	r.Set(StepWebData, Route{Timeout: 30 * time.Second, CacheTTL: mustTTL("24h")})
	r.Set(StepRegistryDocs, Route{Timeout: 2 * time.Minute, CacheTTL: mustTTL("7d")})
	r.Set(StepNews, Route{Timeout: 45 * time.Second, CacheTTL: mustTTL("6h")})
	r.Set(StepValidate, Route{Timeout: 10 * time.Second, CacheTTL: 0})
	r.Set(StepSynthesize, Route{Timeout: 10 * time.Second, CacheTTL: 0})
	return r
}

// mustTTL parses a policy-shorthand duration for the built-in table.
func mustTTL(s string) time.Duration {
	d, err := cache.ParseTTL(s)
	if err != nil {
		panic(err)
	}
	return d
}
