package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/entgraph/entgraph/internal/graph"
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

// completion is how a task goroutine reports its terminal outcome back
// to the run loop. Retries happen inside the goroutine, so the loop only
// ever sees terminal results.
type completion struct {
	task *models.Task
	res  retryResult
}

// run holds per-session scheduling state. The run loop is the sole
// writer of the session and graph once RunSession starts.
type run struct {
	session  *models.Session
	graph    *graph.DependencyGraph
	order    int
	running  int
	comp     chan completion
	children []*models.SessionResult
	timedOut bool
}

// RunSession drives one session from Initializing to a terminal phase
// and returns its aggregated result. It blocks until the session
// finishes, is cancelled, or hits its time limit.
func (e *Engine) RunSession(ctx context.Context, session *models.Session) *models.SessionResult {
	started := time.Now()

	sessCtx := ctx
	if e.cfg.Engine.SessionTimeLimit > 0 {
		var cancel context.CancelFunc
		sessCtx, cancel = context.WithTimeout(ctx, e.cfg.Engine.SessionTimeLimit)
		defer cancel()
	}

	e.logger.Log("[engine] session %s seed=%q depth=%d started", session.ID, session.Seed, session.Depth)
	e.emit(Event{Type: EventSessionStarted, SessionID: session.ID, Seed: session.Seed, Depth: session.Depth, Phase: session.Phase})

	r := &run{
		session: session,
		graph:   graph.New(),
		// Buffered past the largest possible pipeline so task goroutines
		// never block sending after an abort.
		comp: make(chan completion, 16),
	}

	e.advancePhases(sessCtx, r)

	for !session.Phase.Terminal() {
		if sessCtx.Err() != nil {
			e.abort(ctx, sessCtx, r)
			break
		}

		e.launchReady(sessCtx, r)

		if r.running == 0 {
			// Nothing running and nothing launchable. Either a phase
			// change is enabled, or the remaining pending tasks are
			// unreachable and the session is wedged.
			if e.advancePhases(sessCtx, r) {
				continue
			}
			if len(r.graph.Pending()) > 0 {
				e.blockUnreachable(r)
				if e.advancePhases(sessCtx, r) {
					continue
				}
			}
			session.Errors = append(session.Errors, fmt.Sprintf("no enabled transition from phase %s", session.Phase))
			session.Phase = models.PhaseFailed
			break
		}

		select {
		case <-sessCtx.Done():
			// Loop top handles the abort.
		case c := <-r.comp:
			r.running--
			e.handleCompletion(sessCtx, r, c)
			e.advancePhases(sessCtx, r)
		}
	}

	result := e.buildResult(r, started)
	e.logger.Log("[engine] session %s finished phase=%s elapsed=%s tasks=%d children=%d",
		session.ID, session.Phase, result.Elapsed, len(result.Tasks), len(result.Children))
	e.emit(Event{Type: EventSessionDone, SessionID: session.ID, Seed: session.Seed, Depth: session.Depth, Phase: session.Phase})
	return result
}

// advancePhases applies enabled transitions until none fires. Entering a
// working phase injects its tasks; entering Recursing runs the children
// synchronously and re-evaluates. Returns true if any transition fired.
func (e *Engine) advancePhases(ctx context.Context, r *run) bool {
	moved := false
	for {
		next, ok := e.machine.Next(r.session)
		if !ok {
			return moved
		}
		prev := r.session.Phase
		r.session.Phase = next
		moved = true

		e.logger.Log("[engine] session %s phase %s -> %s", r.session.ID, prev, next)
		e.emit(Event{Type: EventPhaseChanged, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: next,
			Message: fmt.Sprintf("%s -> %s", prev, next)})

		if next.Terminal() {
			return true
		}

		if next == models.PhaseRecursing {
			e.runChildren(ctx, r)
			continue
		}

		tasks := tasksFor(next, r.graph, &r.order)
		if len(tasks) == 0 {
			continue
		}
		if err := r.graph.Add(tasks); err != nil {
			r.session.Errors = append(r.session.Errors, fmt.Sprintf("pipeline for phase %s: %v", next, err))
			r.session.Phase = models.PhaseFailed
			return true
		}
		for _, t := range tasks {
			r.session.TaskStates[t.ID] = models.TaskPending
		}
	}
}

// launchReady starts ready tasks up to the concurrency cap, highest
// priority first with declaration order as the tie-break.
func (e *Engine) launchReady(ctx context.Context, r *run) {
	slots := e.cfg.Engine.MaxConcurrentTasks - r.running
	if slots <= 0 {
		return
	}

	ready := r.graph.Ready()
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].Order < ready[j].Order
	})

	for _, task := range ready {
		if slots == 0 {
			return
		}
		e.launch(ctx, r, task)
		slots--
	}
}

// launch marks a task running and executes it on a goroutine. The
// goroutine owns retries and reports exactly one terminal completion.
func (e *Engine) launch(ctx context.Context, r *run, task *models.Task) {
	step, ok := e.registry.Get(task.Step)
	if !ok {
		now := time.Now()
		task.State = models.TaskFailed
		task.EndedAt = &now
		task.LastError = fmt.Sprintf("no step registered as %q", task.Step)
		r.session.TaskStates[task.ID] = models.TaskFailed
		r.session.Errors = append(r.session.Errors, task.LastError)
		e.blockDependents(r, task)
		return
	}

	now := time.Now()
	task.State = models.TaskRunning
	task.StartedAt = &now
	r.session.TaskStates[task.ID] = models.TaskRunning
	r.running++

	e.logger.Log("[engine] session %s task %s started (priority %s)", r.session.ID, task.ID, task.Priority)
	e.emit(Event{Type: EventTaskStarted, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: task.ID})

	route := e.router.RouteFor(task.Step)
	input := e.stepInput(r, task, route.CacheTTL)

	go func() {
		res := withRetry(ctx, e.retry, task.ID, func(rctx context.Context) (*models.Finding, error) {
			attemptCtx := rctx
			if route.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(rctx, route.Timeout)
				defer cancel()
			}
			out, err := e.strategy.Run(attemptCtx, step.Lane(), step.Name(), func(wctx context.Context) (any, error) {
				return step.Execute(wctx, input)
			})
			if err != nil {
				if attemptCtx.Err() != nil && rctx.Err() == nil {
					// Per-attempt timeout, not session cancellation.
					return nil, models.Transient(task.Step, fmt.Errorf("timed out after %s", route.Timeout))
				}
				return nil, err
			}
			finding, _ := out.(*models.Finding)
			return finding, nil
		})
		r.comp <- completion{task: task, res: res}
	}()
}

// stepInput snapshots the session state a step is allowed to read.
// Findings are copied so the run loop can keep merging while earlier
// snapshots are still being read.
func (e *Engine) stepInput(r *run, task *models.Task, ttl time.Duration) *steps.Input {
	findings := make(map[string]*models.Finding, len(r.session.Findings))
	for k, v := range r.session.Findings {
		findings[k] = v
	}

	in := &steps.Input{
		Entity:     r.session.Seed,
		ResolvedID: resolvedID(r.session),
		Findings:   findings,
		Cache:      e.cache,
		CacheTTL:   ttl,
		Calls:      e.budget,
	}
	if task.Step == steps.StepSynthesize {
		in.Warnings = omittedStepNotes(r)
	}
	return in
}

// resolvedID prefers the identifier the identify step produced, falling
// back to one the session was created with.
func resolvedID(s *models.Session) string {
	if f := s.Finding(steps.StepIdentify); f != nil {
		if id := f.String("resolved_id"); id != "" {
			return id
		}
	}
	return s.ResolvedID
}

// omittedStepNotes names collection tasks that ended without a finding,
// so synthesis can disclose the gaps.
func omittedStepNotes(r *run) []string {
	var notes []string
	for _, task := range tasksInOrder(r.graph) {
		if task.State.Terminal() && task.State != models.TaskCompleted && task.Step != steps.StepSynthesize {
			notes = append(notes, fmt.Sprintf("step %s omitted: %s", task.Step, task.State))
		}
	}
	return notes
}

// handleCompletion merges a terminal task outcome into the session.
func (e *Engine) handleCompletion(ctx context.Context, r *run, c completion) {
	now := time.Now()
	task := c.task
	task.EndedAt = &now
	task.Attempts = c.res.attempts

	switch {
	case c.res.err == nil:
		task.State = models.TaskCompleted
		r.session.TaskStates[task.ID] = models.TaskCompleted
		r.graph.MarkComplete(task.ID)
		if c.res.finding != nil {
			r.session.Findings[task.Step] = c.res.finding
		}
		r.session.AddMetric("tasks_completed", 1)
		e.logger.Log("[engine] session %s task %s completed after %d attempt(s)", r.session.ID, task.ID, task.Attempts)
		e.emit(Event{Type: EventTaskCompleted, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: task.ID})

	// A context error counts as cancellation only while the session
	// itself is shutting down; a step surfacing its own deadline error
	// has failed and must block its dependents.
	case ctx.Err() != nil && (errors.Is(c.res.err, context.Canceled) || errors.Is(c.res.err, context.DeadlineExceeded)):
		task.State = models.TaskCancelled
		r.session.TaskStates[task.ID] = models.TaskCancelled
		e.emit(Event{Type: EventTaskCancelled, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: task.ID})

	default:
		task.State = models.TaskFailed
		task.LastError = c.res.err.Error()
		r.session.TaskStates[task.ID] = models.TaskFailed
		r.session.Errors = append(r.session.Errors, fmt.Sprintf("%s: %v", task.Step, c.res.err))
		r.session.AddMetric("tasks_failed", 1)
		e.logger.Log("[engine] session %s task %s failed after %d attempt(s): %v", r.session.ID, task.ID, task.Attempts, c.res.err)
		e.emit(Event{Type: EventTaskFailed, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: task.ID, Error: c.res.err})
		e.blockDependents(r, task)
	}

	// Candidate selection happens once validation settles, before the
	// Validating guards are re-evaluated.
	if r.session.Phase == models.PhaseValidating && task.ID == steps.StepValidate {
		r.session.Accepted = e.controller.SelectCandidates(r.session.Findings, r.session.Depth+1)
		e.logger.Log("[engine] session %s accepted %d candidate(s) for depth %d", r.session.ID, len(r.session.Accepted), r.session.Depth+1)
	}
}

// blockDependents moves every still-pending transitive dependent of a
// failed task to Blocked.
func (e *Engine) blockDependents(r *run, failed *models.Task) {
	now := time.Now()
	for _, id := range r.graph.TransitiveDependents(failed.ID) {
		t := r.graph.Task(id)
		if t == nil || t.State != models.TaskPending {
			continue
		}
		t.State = models.TaskBlocked
		t.BlockedReason = fmt.Sprintf("dependency %s %s", failed.ID, failed.State)
		t.EndedAt = &now
		r.session.TaskStates[id] = models.TaskBlocked
		e.logger.Log("[engine] session %s task %s blocked: %s", r.session.ID, id, t.BlockedReason)
		e.emit(Event{Type: EventTaskBlocked, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: id, Message: t.BlockedReason})
	}
}

// blockUnreachable marks pending tasks that can never become ready. A
// pending task with no running work and no enabled transition has a
// dependency that ended without completing.
func (e *Engine) blockUnreachable(r *run) {
	now := time.Now()
	for _, t := range r.graph.Pending() {
		t.State = models.TaskBlocked
		t.BlockedReason = "unreachable: dependency did not complete"
		t.EndedAt = &now
		r.session.TaskStates[t.ID] = models.TaskBlocked
		e.logger.Log("[engine] session %s task %s blocked as unreachable", r.session.ID, t.ID)
		e.emit(Event{Type: EventTaskBlocked, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: t.ID, Message: t.BlockedReason})
	}
}

// runChildren spawns child sessions for the accepted candidates and
// waits for them. No other tasks run during Recursing, so blocking here
// keeps the single-writer invariant intact.
func (e *Engine) runChildren(ctx context.Context, r *run) {
	if e.spawner != nil && len(r.session.Accepted) > 0 {
		r.children = append(r.children, e.spawner(ctx, r.session)...)
	}
	r.session.ChildrenDone = true
}

// abort cancels the session: running tasks get a cancelled outcome when
// their goroutines notice the context, pending tasks are cancelled here.
func (e *Engine) abort(parentCtx, sessCtx context.Context, r *run) {
	r.timedOut = parentCtx.Err() == nil && sessCtx.Err() == context.DeadlineExceeded

	now := time.Now()
	for _, t := range r.graph.Tasks() {
		if t.State == models.TaskPending || t.State == models.TaskRunning {
			t.State = models.TaskCancelled
			t.EndedAt = &now
			r.session.TaskStates[t.ID] = models.TaskCancelled
			e.emit(Event{Type: EventTaskCancelled, SessionID: r.session.ID, Seed: r.session.Seed, Depth: r.session.Depth, Phase: r.session.Phase, TaskID: t.ID})
		}
	}

	if !r.session.Phase.Terminal() {
		if r.timedOut {
			e.logger.Log("[engine] session %s timed out in phase %s", r.session.ID, r.session.Phase)
			r.session.Errors = append(r.session.Errors, fmt.Sprintf("session time limit %s exceeded", e.cfg.Engine.SessionTimeLimit))
			r.session.Phase = models.PhaseFailed
		} else {
			r.session.Phase = models.PhaseCancelled
			e.logger.Log("[engine] session %s cancelled", r.session.ID)
		}
	}
}

// buildResult aggregates the finished session into a SessionResult.
func (e *Engine) buildResult(r *run, started time.Time) *models.SessionResult {
	s := r.session

	tasks := tasksInOrder(r.graph)
	outcomes := make([]models.TaskOutcome, 0, len(tasks))
	for _, t := range tasks {
		var dur time.Duration
		if t.StartedAt != nil && t.EndedAt != nil {
			dur = t.EndedAt.Sub(*t.StartedAt)
		}
		outcomes = append(outcomes, models.TaskOutcome{
			TaskID:   t.ID,
			Step:     t.Step,
			State:    t.State,
			Attempts: t.Attempts,
			Error:    t.LastError,
			Duration: dur,
		})
	}

	return &models.SessionResult{
		SessionID:  s.ID,
		Seed:       s.Seed,
		Depth:      s.Depth,
		FinalPhase: s.Phase,
		Findings:   s.Findings,
		Discovered: discoveredNames(s),
		Tasks:      outcomes,
		Errors:     s.Errors,
		Warnings:   s.Warnings,
		Metrics:    s.Metrics,
		Elapsed:    time.Since(started),
		TimedOut:   r.timedOut,
		Children:   r.children,
	}
}

// tasksInOrder returns the graph's tasks in declaration order.
func tasksInOrder(g *graph.DependencyGraph) []*models.Task {
	tasks := g.Tasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks
}

// discoveredNames collects the distinct candidate names seen across all
// findings, whether or not they were recursed into.
func discoveredNames(s *models.Session) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range s.Findings {
		for _, c := range f.Candidates {
			if c.Name == "" || seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}
