// Package queue defines the durable background-queue collaborator used
// by the execution strategy's CPU-heavy lane when local capacity is
// exhausted, plus a local in-process implementation.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimedOut is the three-way result's timeout arm.
var ErrTimedOut = errors.New("queued work timed out")

// Work is one unit of queued work.
type Work func(ctx context.Context) (any, error)

// Queue accepts categorized work and reports completion through a Future.
type Queue interface {
	// Submit enqueues work under a category and returns a future that
	// resolves to success, failure, or timeout.
	Submit(ctx context.Context, category string, work Work) *Future
}

// Future is the pending result of submitted work.
type Future struct {
	done chan struct{}

	mu    sync.Mutex
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(value any, err error) {
	f.mu.Lock()
	f.value = value
	f.err = err
	f.mu.Unlock()
	close(f.done)
}

// Await blocks until the work finishes or ctx expires. Context expiry
// surfaces as ErrTimedOut so callers see the queue's three-way result.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		return nil, ErrTimedOut
	}
}

// Local runs submitted work on background goroutines with a per-item
// time limit. It stands in for a durable external queue; the interface
// is what the CPU lane depends on.
type Local struct {
	// ItemTimeout bounds one work item. Zero means no bound beyond ctx.
	ItemTimeout time.Duration

	wg sync.WaitGroup
}

// NewLocal creates a local queue with the given per-item timeout.
func NewLocal(itemTimeout time.Duration) *Local {
	return &Local{ItemTimeout: itemTimeout}
}

// Submit runs the work on a background goroutine.
func (q *Local) Submit(ctx context.Context, category string, work Work) *Future {
	fut := newFuture()
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		runCtx := ctx
		if q.ItemTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, q.ItemTimeout)
			defer cancel()
		}

		value, err := work(runCtx)
		if runCtx.Err() != nil && err != nil {
			err = ErrTimedOut
		}
		fut.resolve(value, err)
	}()
	return fut
}

// Drain waits for all in-flight work to finish.
func (q *Local) Drain() {
	q.wg.Wait()
}

var _ Queue = (*Local)(nil)
