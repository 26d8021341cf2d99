package orchestrator

import (
	"time"

	"github.com/entgraph/entgraph/pkg/models"
)

// EventType represents the type of exploration event.
type EventType string

const (
	// EventSessionStarted indicates a session began executing.
	EventSessionStarted EventType = "session_started"
	// EventPhaseChanged indicates a session moved to a new phase.
	EventPhaseChanged EventType = "phase_changed"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed after exhausting retries.
	EventTaskFailed EventType = "task_failed"
	// EventTaskBlocked indicates a task was blocked by an upstream failure.
	EventTaskBlocked EventType = "task_blocked"
	// EventTaskCancelled indicates a task was cancelled before running.
	EventTaskCancelled EventType = "task_cancelled"
	// EventChildSpawned indicates a child session was spawned for a candidate.
	EventChildSpawned EventType = "child_spawned"
	// EventSessionDone indicates a session reached a terminal phase.
	EventSessionDone EventType = "session_done"
)

// Event is emitted by the engine as a session progresses. Events are
// advisory: delivery is best-effort and consumers must not assume they
// receive every one.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SessionID identifies the session the event belongs to.
	SessionID string
	// Seed is the entity name the session explores.
	Seed string
	// Depth is the session's recursion depth.
	Depth int
	// Phase is the session phase at the time of the event.
	Phase models.Phase
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event without blocking the run loop. Events are dropped
// when the consumer falls behind.
func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case e.events <- ev:
	default:
		debugLog("[events] dropped %s for session %s", ev.Type, ev.SessionID)
	}
}
