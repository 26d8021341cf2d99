// Package steps holds the pluggable data-collection steps a session
// pipeline runs. Implementations form a closed set registered by name;
// the engine looks them up from a task's step name rather than
// inspecting types at runtime.
package steps

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/entgraph/entgraph/internal/cache"
	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// Step names. Task IDs in pipeline templates use these directly.
const (
	StepNormalize    = "normalize"
	StepIdentify     = "identify"
	StepWebData      = "webdata"
	StepRegistryDocs = "registrydocs"
	StepNews         = "news"
	StepValidate     = "validate"
	StepSynthesize   = "synthesize"
)

// CallCounter records external lookups against the exploration budget.
type CallCounter interface {
	CountExternalCalls(n int64) int64
}

// Input carries everything a step may read. Steps never mutate shared
// session state; they return a Finding the engine merges.
type Input struct {
	// Entity is the seed name this session explores.
	Entity string
	// ResolvedID is the already-resolved identifier, if known.
	ResolvedID string
	// Findings holds prior steps' output, keyed by step name. Read-only.
	Findings map[string]*models.Finding
	// Cache is the optional cache collaborator. A miss is never an error.
	Cache cache.Cache
	// CacheTTL is the routing TTL for this step's cached results.
	CacheTTL time.Duration
	// Calls counts external lookups; may be nil.
	Calls CallCounter
	// Warnings from the engine the step may want to surface, e.g.
	// omitted blocked steps for synthesis.
	Warnings []string
}

// countCall records one external lookup if a counter is attached.
func (in *Input) countCall() {
	if in.Calls != nil {
		in.Calls.CountExternalCalls(1)
	}
}

// Step is one schedulable capability. Execute must be idempotent-safe
// under retry: re-invocation with the same input produces the same
// finding and no duplicate side effects.
type Step interface {
	// Name returns the registered step name.
	Name() string
	// Lane declares which execution substrate this step needs.
	Lane() executil.Lane
	// Execute performs the lookup and returns a structured finding.
	Execute(ctx context.Context, in *Input) (*models.Finding, error)
}

// Registry is the closed lookup of step implementations by name.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register adds a step. Registering the same name twice is a
// configuration error.
func (r *Registry) Register(s Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[s.Name()]; exists {
		return models.Configf("step %q registered twice", s.Name())
	}
	r.steps[s.Name()] = s
	return nil
}

// Get returns the step registered under name.
func (r *Registry) Get(name string) (Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}

// Names returns registered step names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry registers the built-in pipeline steps. The strategy is
// handed to steps that dispatch their own heavy or batch work.
func DefaultRegistry(strategy *executil.Strategy) *Registry {
	r := NewRegistry()
	// Built-ins never collide.
	_ = r.Register(&NormalizeStep{})
	_ = r.Register(&IdentifyStep{})
	_ = r.Register(&WebDataStep{})
	_ = r.Register(&RegistryDocsStep{Strategy: strategy})
	_ = r.Register(&NewsStep{Strategy: strategy})
	_ = r.Register(&ValidateStep{})
	_ = r.Register(&SynthesizeStep{})
	return r
}
