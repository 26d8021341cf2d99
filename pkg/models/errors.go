package models

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded signals that an early-stopping ceiling was hit. It is
// not a failure: the recursion controller returns no candidates and the
// state machine steers the session toward Synthesizing.
var ErrBudgetExceeded = errors.New("exploration budget exceeded")

// TransientError marks a step failure as retryable (e.g. a timeout).
// The engine retries it with exponential backoff.
type TransientError struct {
	Step string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in step %s: %v", e.Step, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable step failure.
func Transient(step string, err error) error {
	return &TransientError{Step: step, Err: err}
}

// PermanentError marks a step failure as non-retryable (e.g. malformed
// input). The engine fails the task immediately without consuming retries.
type PermanentError struct {
	Step string
	Err  error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent failure in step %s: %v", e.Step, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a non-retryable step failure.
func Permanent(step string, err error) error {
	return &PermanentError{Step: step, Err: err}
}

// IsTransient reports whether err should be retried. Errors that carry no
// classification default to transient so that flaky collaborators get the
// benefit of the retry budget.
func IsTransient(err error) bool {
	var perm *PermanentError
	return !errors.As(err, &perm)
}

// ConfigurationError indicates the session could not be constructed:
// a cyclic dependency graph, ambiguous state-machine guards, or invalid
// settings. It is fatal and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
