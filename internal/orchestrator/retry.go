package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/entgraph/entgraph/pkg/models"
)

// RetryPolicy controls how failed step executions are retried.
// Only transient failures are retried; permanent failures surface
// immediately.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// BackoffFactor multiplies the delay for each subsequent retry.
	BackoffFactor float64
}

// Delay returns the wait before retry number attempt (0-based).
// delay = BaseDelay * BackoffFactor^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	return time.Duration(d)
}

// retryResult carries the terminal outcome of a retried execution.
type retryResult struct {
	finding  *models.Finding
	err      error
	attempts int
}

// withRetry runs fn until it succeeds, fails permanently, exhausts the
// policy, or the context is cancelled. Retries happen inside the task's
// own goroutine so the run loop only ever observes terminal outcomes.
func withRetry(ctx context.Context, policy RetryPolicy, taskID string, fn func(context.Context) (*models.Finding, error)) retryResult {
	for attempt := 0; ; attempt++ {
		finding, err := fn(ctx)
		if err == nil {
			return retryResult{finding: finding, attempts: attempt + 1}
		}

		if ctx.Err() != nil {
			return retryResult{err: ctx.Err(), attempts: attempt + 1}
		}
		if !models.IsTransient(err) {
			debugLog("[retry] task %s failed permanently on attempt %d: %v", taskID, attempt+1, err)
			return retryResult{err: err, attempts: attempt + 1}
		}
		if attempt >= policy.MaxRetries {
			debugLog("[retry] task %s exhausted %d retries: %v", taskID, policy.MaxRetries, err)
			return retryResult{err: err, attempts: attempt + 1}
		}

		delay := policy.Delay(attempt)
		debugLog("[retry] task %s attempt %d failed, retrying in %s: %v", taskID, attempt+1, delay, err)
		select {
		case <-ctx.Done():
			return retryResult{err: ctx.Err(), attempts: attempt + 1}
		case <-time.After(delay):
		}
	}
}
