package models

import "time"

// TaskState represents the current state of a task.
type TaskState string

const (
	// TaskPending indicates the task has not started.
	TaskPending TaskState = "pending"
	// TaskRunning indicates the task is executing.
	TaskRunning TaskState = "running"
	// TaskCompleted indicates the task finished successfully.
	TaskCompleted TaskState = "completed"
	// TaskFailed indicates the task failed after exhausting retries.
	TaskFailed TaskState = "failed"
	// TaskBlocked indicates a dependency failed so the task can never run.
	TaskBlocked TaskState = "blocked"
	// TaskCancelled indicates the session was cancelled before the task ran.
	TaskCancelled TaskState = "cancelled"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskRunning, TaskCompleted, TaskFailed, TaskBlocked, TaskCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further state change is possible.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskBlocked, TaskCancelled:
		return true
	default:
		return false
	}
}

// Priority orders tasks within the ready set. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Task represents one schedulable unit of work inside a session's pipeline.
type Task struct {
	// ID is the unique identifier for this task within its session.
	// By convention it equals the step name it executes.
	ID string `json:"id"`
	// Step is the registered step name this task runs.
	Step string `json:"step"`
	// Priority orders this task against others in the ready set.
	Priority Priority `json:"priority"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Order is the declaration position within the pipeline, used as a
	// stable tie-break when priorities are equal.
	Order int `json:"order"`
	// State is the current scheduling state.
	State TaskState `json:"state"`
	// Attempts is the number of execution attempts made so far.
	Attempts int `json:"attempts"`
	// LastError holds the most recent error message, if any.
	LastError string `json:"last_error,omitempty"`
	// BlockedReason records why a task was blocked, if applicable.
	BlockedReason string `json:"blocked_reason,omitempty"`
	// StartedAt is when the first attempt began.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the task reached a terminal state.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// TaskOutcome is the per-task record included in a SessionResult.
type TaskOutcome struct {
	TaskID   string        `json:"task_id"`
	Step     string        `json:"step"`
	State    TaskState     `json:"state"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
