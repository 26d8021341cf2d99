// Package executil routes units of work to the right concurrency
// substrate. A single budget sized for I/O would either starve CPU-heavy
// work or oversubscribe CPU if sized for compute; separate lanes let each
// be tuned independently of the scheduler's task cap.
package executil

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/entgraph/entgraph/internal/exec"
	"github.com/entgraph/entgraph/internal/queue"
)

// Lane selects the substrate a unit of work runs on.
type Lane int

const (
	// LaneInline executes synchronously on the caller's goroutine.
	LaneInline Lane = iota
	// LaneIO runs under the scheduler's own concurrency model and does
	// not consume a worker slot: each task already has its goroutine,
	// and I/O work spends its time blocked.
	LaneIO
	// LaneCPU dispatches to the bounded CPU lane; overflow goes to the
	// durable queue collaborator.
	LaneCPU
	// LanePool dispatches to the bounded worker pool for
	// parallelizable-but-light work.
	LanePool
)

// String returns a human-readable representation of the lane.
func (l Lane) String() string {
	switch l {
	case LaneInline:
		return "inline"
	case LaneIO:
		return "io"
	case LaneCPU:
		return "cpu"
	case LanePool:
		return "pool"
	default:
		return "unknown"
	}
}

// Work is one unit of routable work.
type Work func(ctx context.Context) (any, error)

// Strategy holds the lane substrates. The CPU lane and the pool are
// sized independently of the scheduler's maxConcurrentTasks.
type Strategy struct {
	cpu    *semaphore.Weighted
	pool   *semaphore.Weighted
	runner exec.CommandRunner
	queue  queue.Queue
}

// New creates a strategy with the given lane widths. The queue receives
// CPU work that finds no free local slot; runner executes external
// helper commands for process isolation.
func New(cpuWorkers, poolWorkers int, runner exec.CommandRunner, q queue.Queue) *Strategy {
	if cpuWorkers < 1 {
		cpuWorkers = 1
	}
	if poolWorkers < 1 {
		poolWorkers = 1
	}
	return &Strategy{
		cpu:    semaphore.NewWeighted(int64(cpuWorkers)),
		pool:   semaphore.NewWeighted(int64(poolWorkers)),
		runner: runner,
		queue:  q,
	}
}

// Run executes work on the lane's substrate and returns its result.
func (s *Strategy) Run(ctx context.Context, lane Lane, category string, work Work) (any, error) {
	switch lane {
	case LaneInline, LaneIO:
		// Both run on the calling goroutine; the distinction is that
		// I/O work never counts against a worker slot.
		return work(ctx)

	case LanePool:
		if err := s.pool.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.pool.Release(1)
		return work(ctx)

	case LaneCPU:
		if s.cpu.TryAcquire(1) {
			defer s.cpu.Release(1)
			return work(ctx)
		}
		// Local CPU capacity exhausted: hand off to the durable queue
		// and wait on its three-way result.
		if s.queue == nil {
			// No queue configured; block for a local slot instead.
			if err := s.cpu.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer s.cpu.Release(1)
			return work(ctx)
		}
		fut := s.queue.Submit(ctx, category, queue.Work(work))
		return fut.Await(ctx)

	default:
		return nil, fmt.Errorf("unknown execution lane %d", lane)
	}
}

// RunCommand executes an external helper command under the CPU lane.
// This is the isolated-process path for heavy parsing work.
func (s *Strategy) RunCommand(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("no command runner configured")
	}
	if err := s.cpu.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.cpu.Release(1)
	return s.runner.Run(ctx, workDir, name, args...)
}

// CommandAvailable reports whether an external helper is installed.
func (s *Strategy) CommandAvailable(name string) bool {
	return s.runner != nil && s.runner.Available(name)
}
