package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entgraph/entgraph/internal/cache"
	"github.com/entgraph/entgraph/internal/config"
	iexec "github.com/entgraph/entgraph/internal/exec"
	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/internal/queue"
	"github.com/entgraph/entgraph/internal/recursion"
	"github.com/entgraph/entgraph/internal/state"
	"github.com/entgraph/entgraph/internal/statemachine"
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

// Explorer coordinates one whole exploration: the root session plus the
// tree of recursive child sessions it spawns. Collaborators that must be
// shared across every session in the tree live here: the visited set,
// the budget, the criteria, the cache, and the lane substrates.
type Explorer struct {
	cfg        *config.Config
	criteria   *config.Criteria
	registry   *steps.Registry
	router     *steps.Router
	strategy   *executil.Strategy
	machine    *statemachine.Machine
	cache      cache.Cache
	store      state.OutcomeWriter
	events     chan Event
	logger     *DebugLogger
	visited    *recursion.VisitedSet
	budget     *recursion.Budget
	controller *recursion.Controller
}

// ExplorerOption configures an Explorer.
type ExplorerOption func(*explorerOptions)

type explorerOptions struct {
	registry *steps.Registry
	router   *steps.Router
	strategy *executil.Strategy
	criteria *config.Criteria
	cache    cache.Cache
	store    state.OutcomeWriter
	events   chan Event
	logger   *DebugLogger
	runner   iexec.CommandRunner
}

// WithExplorerRegistry sets a custom step registry.
func WithExplorerRegistry(r *steps.Registry) ExplorerOption {
	return func(o *explorerOptions) { o.registry = r }
}

// WithExplorerRouter sets a custom routing table.
func WithExplorerRouter(r *steps.Router) ExplorerOption {
	return func(o *explorerOptions) { o.router = r }
}

// WithExplorerStrategy sets a custom execution strategy.
func WithExplorerStrategy(s *executil.Strategy) ExplorerOption {
	return func(o *explorerOptions) { o.strategy = s }
}

// WithCriteria sets pre-loaded recursion criteria, bypassing the
// configured criteria file.
func WithCriteria(c *config.Criteria) ExplorerOption {
	return func(o *explorerOptions) { o.criteria = c }
}

// WithStepCache sets the step result cache shared by every session.
func WithStepCache(c cache.Cache) ExplorerOption {
	return func(o *explorerOptions) { o.cache = c }
}

// WithStore sets the persistence sink results are appended to.
func WithStore(s state.OutcomeWriter) ExplorerOption {
	return func(o *explorerOptions) { o.store = s }
}

// WithEventChannel sets the channel exploration events are emitted on.
func WithEventChannel(ch chan Event) ExplorerOption {
	return func(o *explorerOptions) { o.events = ch }
}

// WithExplorerLogger sets the debug logger.
func WithExplorerLogger(l *DebugLogger) ExplorerOption {
	return func(o *explorerOptions) { o.logger = l }
}

// WithCommandRunner sets the runner for external helper commands.
func WithCommandRunner(r iexec.CommandRunner) ExplorerOption {
	return func(o *explorerOptions) { o.runner = r }
}

// NewExplorer builds an explorer from configuration. The phase machine
// is validated against a sampled session corpus before anything runs;
// ambiguous guards are a configuration error.
func NewExplorer(cfg *config.Config, opts ...ExplorerOption) (*Explorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &explorerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	machine := statemachine.DefaultMachine()
	if err := machine.Validate(statemachine.SampleSessions()); err != nil {
		return nil, err
	}

	if o.logger == nil {
		var err error
		o.logger, err = NewDebugLogger(cfg.Engine.DebugLog)
		if err != nil {
			return nil, err
		}
	}
	setPackageLogger(o.logger)

	criteria := o.criteria
	if criteria == nil {
		if cfg.Recursion.CriteriaFile != "" {
			var err error
			criteria, err = config.LoadCriteria(cfg.Recursion.CriteriaFile)
			if err != nil {
				return nil, fmt.Errorf("load criteria: %w", err)
			}
			if cfg.Recursion.WatchCriteria {
				if err := criteria.Watch(); err != nil {
					o.logger.Log("[explorer] criteria watch unavailable: %v", err)
				}
			}
		} else {
			criteria = config.DefaultCriteria()
		}
	}

	if o.cache == nil && cfg.Cache.Enabled {
		var err error
		o.cache, err = cache.OpenBadger(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	if o.strategy == nil {
		runner := o.runner
		if runner == nil {
			runner = iexec.NewRunner()
		}
		o.strategy = executil.New(cfg.Lanes.CPUWorkers, cfg.Lanes.PoolWorkers, runner, queue.NewLocal(0))
	}
	if o.registry == nil {
		o.registry = steps.DefaultRegistry(o.strategy)
	}
	if o.router == nil {
		o.router = steps.DefaultRouter(cfg.Cache.DefaultTTL)
	}

	visited := recursion.NewVisitedSet()
	budget := recursion.NewBudget(cfg.Limits)

	return &Explorer{
		cfg:        cfg,
		criteria:   criteria,
		registry:   o.registry,
		router:     o.router,
		strategy:   o.strategy,
		machine:    machine,
		cache:      o.cache,
		store:      o.store,
		events:     o.events,
		logger:     o.logger,
		visited:    visited,
		budget:     budget,
		controller: recursion.NewController(criteria, visited, budget, cfg.Recursion),
	}, nil
}

// Explore runs a full exploration rooted at seed and returns the result
// tree. The root session claims its own identity in the visited set so
// descendants can never recurse back into it.
func (x *Explorer) Explore(ctx context.Context, seed string) (*models.SessionResult, error) {
	if seed == "" {
		return nil, models.Configf("seed entity name is empty")
	}

	x.visited.Add(seed)
	x.budget.CountEntity()
	x.logger.Log("[explorer] exploring %q (max depth %d)", seed, x.cfg.Recursion.MaxDepth)

	session := models.NewSession(uuid.New().String(), seed, 0, x.cfg.Recursion.MaxDepth)
	result := x.newEngine().RunSession(ctx, session)

	if x.store != nil {
		if err := x.store.AppendResult(result); err != nil {
			x.logger.Log("[explorer] persist results: %v", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("persist results: %v", err))
		}
	}
	return result, nil
}

// Close releases explorer-owned collaborators.
func (x *Explorer) Close() error {
	var first error
	if x.criteria != nil {
		if err := x.criteria.Close(); err != nil {
			first = err
		}
	}
	if x.cache != nil {
		if err := x.cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	setPackageLogger(nil)
	if err := x.logger.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// newEngine builds an engine over the explorer's shared collaborators.
func (x *Explorer) newEngine() *Engine {
	return NewEngine(x.cfg,
		WithRegistry(x.registry),
		WithRouter(x.router),
		WithStrategy(x.strategy),
		WithMachine(x.machine),
		WithController(x.controller),
		WithBudget(x.budget),
		WithCache(x.cache),
		WithEvents(x.events),
		WithLogger(x.logger),
		WithChildSpawner(x.runChildren),
	)
}

// runChildren spawns one child session per accepted candidate, in
// parallel, and returns results in candidate order. The visited set is
// the arbiter when siblings accept the same entity under different
// names: Add admits exactly one claimant.
func (x *Explorer) runChildren(ctx context.Context, parent *models.Session) []*models.SessionResult {
	results := make([]*models.SessionResult, len(parent.Accepted))
	var wg sync.WaitGroup

	for i, sc := range parent.Accepted {
		if exceeded, reason := x.budget.Exceeded(); exceeded {
			x.logger.Log("[explorer] budget stop before child %q: %s", sc.Candidate.Name, reason)
			break
		}
		if !x.visited.Add(sc.Candidate.Name) {
			x.logger.Log("[explorer] skipping %q: already claimed", sc.Candidate.Name)
			continue
		}
		x.budget.CountEntity()

		child := models.NewSession(uuid.New().String(), sc.Candidate.Name, parent.Depth+1, parent.MaxDepth)
		child.ResolvedID = sc.Candidate.ResolvedID

		debugLog("[explorer] session %s spawning child %s for %q at depth %d", parent.ID, child.ID, child.Seed, child.Depth)
		if x.events != nil {
			select {
			case x.events <- Event{Type: EventChildSpawned, SessionID: parent.ID, Seed: parent.Seed, Depth: parent.Depth,
				Phase: parent.Phase, Message: fmt.Sprintf("child %s seed=%q", child.ID, child.Seed), Timestamp: time.Now()}:
			default:
			}
		}

		wg.Add(1)
		go func(idx int, child *models.Session) {
			defer wg.Done()
			results[idx] = x.newEngine().RunSession(ctx, child)
		}(i, child)
	}
	wg.Wait()

	// Compact skipped slots, preserving candidate order.
	out := results[:0]
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}
