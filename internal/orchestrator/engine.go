package orchestrator

import (
	"context"

	"github.com/entgraph/entgraph/internal/cache"
	"github.com/entgraph/entgraph/internal/config"
	iexec "github.com/entgraph/entgraph/internal/exec"
	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/internal/queue"
	"github.com/entgraph/entgraph/internal/recursion"
	"github.com/entgraph/entgraph/internal/statemachine"
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

// ChildSpawner runs child sessions for the candidates a parent session
// accepted and returns their results. The Explorer provides the real
// implementation; tests substitute their own.
type ChildSpawner func(ctx context.Context, parent *models.Session) []*models.SessionResult

// Engine runs a single session: it injects phase tasks into the
// dependency graph, schedules them onto execution lanes, merges findings,
// and asks the state machine where to go next. One engine instance runs
// one session at a time; the Explorer creates a fresh engine per session
// over shared collaborators.
type Engine struct {
	cfg        *config.Config
	registry   *steps.Registry
	router     *steps.Router
	strategy   *executil.Strategy
	machine    *statemachine.Machine
	controller *recursion.Controller
	budget     *recursion.Budget
	cache      cache.Cache
	events     chan<- Event
	logger     *DebugLogger
	retry      RetryPolicy
	spawner    ChildSpawner
}

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

type engineOptions struct {
	registry   *steps.Registry
	router     *steps.Router
	strategy   *executil.Strategy
	machine    *statemachine.Machine
	controller *recursion.Controller
	budget     *recursion.Budget
	cache      cache.Cache
	events     chan<- Event
	logger     *DebugLogger
	spawner    ChildSpawner
}

// WithRegistry sets the step registry.
func WithRegistry(r *steps.Registry) Option {
	return func(o *engineOptions) { o.registry = r }
}

// WithRouter sets the per-step routing table.
func WithRouter(r *steps.Router) Option {
	return func(o *engineOptions) { o.router = r }
}

// WithStrategy sets the execution strategy holding the lane substrates.
func WithStrategy(s *executil.Strategy) Option {
	return func(o *engineOptions) { o.strategy = s }
}

// WithMachine sets the phase state machine.
func WithMachine(m *statemachine.Machine) Option {
	return func(o *engineOptions) { o.machine = m }
}

// WithController sets the recursion controller.
func WithController(c *recursion.Controller) Option {
	return func(o *engineOptions) { o.controller = c }
}

// WithBudget sets the shared exploration budget.
func WithBudget(b *recursion.Budget) Option {
	return func(o *engineOptions) { o.budget = b }
}

// WithCache sets the step result cache.
func WithCache(c cache.Cache) Option {
	return func(o *engineOptions) { o.cache = c }
}

// WithEvents sets the channel engine events are emitted on. Sends never
// block; events are dropped if the consumer falls behind.
func WithEvents(ch chan<- Event) Option {
	return func(o *engineOptions) { o.events = ch }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithChildSpawner sets the callback that runs child sessions during
// the Recursing phase.
func WithChildSpawner(s ChildSpawner) Option {
	return func(o *engineOptions) { o.spawner = s }
}

// NewEngine creates an engine from configuration plus options. Missing
// collaborators get working defaults so tests can build an engine from
// config alone.
func NewEngine(cfg *config.Config, opts ...Option) *Engine {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.strategy == nil {
		o.strategy = executil.New(cfg.Lanes.CPUWorkers, cfg.Lanes.PoolWorkers, iexec.NewRunner(), queue.NewLocal(0))
	}
	if o.registry == nil {
		o.registry = steps.DefaultRegistry(o.strategy)
	}
	if o.router == nil {
		o.router = steps.DefaultRouter(cfg.Cache.DefaultTTL)
	}
	if o.machine == nil {
		o.machine = statemachine.DefaultMachine()
	}
	if o.budget == nil {
		o.budget = recursion.NewBudget(cfg.Limits)
	}
	if o.controller == nil {
		o.controller = recursion.NewController(config.DefaultCriteria(), recursion.NewVisitedSet(), o.budget, cfg.Recursion)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}

	return &Engine{
		cfg:        cfg,
		registry:   o.registry,
		router:     o.router,
		strategy:   o.strategy,
		machine:    o.machine,
		controller: o.controller,
		budget:     o.budget,
		cache:      o.cache,
		events:     o.events,
		logger:     o.logger,
		retry: RetryPolicy{
			MaxRetries:    cfg.Retry.MaxRetries,
			BaseDelay:     cfg.Retry.BaseDelay,
			BackoffFactor: cfg.Retry.BackoffFactor,
		},
		spawner: o.spawner,
	}
}
