package models

import "time"

// Session is one bounded exploration starting at a given entity and depth.
// It is owned exclusively by the engine instance running it: tasks never
// mutate a session directly, they return a Finding the engine merges.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// Seed is the entity name this session explores.
	Seed string `json:"seed"`
	// ResolvedID is an already-resolved external identifier for the seed,
	// set for child sessions whose candidate carried one.
	ResolvedID string `json:"resolved_id,omitempty"`
	// Depth is this session's recursion depth (root = 0).
	Depth int `json:"depth"`
	// MaxDepth is the configured recursion ceiling.
	MaxDepth int `json:"max_depth"`
	// Phase is the current state-machine phase.
	Phase Phase `json:"phase"`
	// Findings maps step name to the structured result of that step.
	Findings map[string]*Finding `json:"findings"`
	// TaskStates mirrors the terminal-or-not state of every task the
	// engine has created for this session, keyed by task ID. Guards in
	// the state machine read it; only the engine writes it.
	TaskStates map[string]TaskState `json:"task_states"`
	// Accepted holds the candidates the recursion controller admitted
	// during Validating, ordered by descending priority.
	Accepted []ScoredCandidate `json:"accepted,omitempty"`
	// ChildrenDone is set by the engine once all child sessions spawned
	// during Recursing have finished.
	ChildrenDone bool `json:"children_done"`
	// Errors accumulates task-level errors that exhausted their retries.
	Errors []string `json:"errors,omitempty"`
	// Warnings accumulates non-fatal session-level notes.
	Warnings []string `json:"warnings,omitempty"`
	// Metrics holds counter values accumulated during the session.
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`
}

// NewSession creates a session in the Initializing phase.
func NewSession(id, seed string, depth, maxDepth int) *Session {
	return &Session{
		ID:         id,
		Seed:       seed,
		Depth:      depth,
		MaxDepth:   maxDepth,
		Phase:      PhaseInitializing,
		Findings:   make(map[string]*Finding),
		TaskStates: make(map[string]TaskState),
		Metrics:    make(map[string]float64),
		StartedAt:  time.Now(),
	}
}

// Finding returns the finding for a step, or nil if not yet produced.
func (s *Session) Finding(step string) *Finding {
	return s.Findings[step]
}

// TasksTerminal reports whether every listed task exists and has reached
// a terminal state.
func (s *Session) TasksTerminal(ids ...string) bool {
	for _, id := range ids {
		st, ok := s.TaskStates[id]
		if !ok || !st.Terminal() {
			return false
		}
	}
	return true
}

// AddMetric increments a named counter on the session.
func (s *Session) AddMetric(name string, delta float64) {
	if s.Metrics == nil {
		s.Metrics = make(map[string]float64)
	}
	s.Metrics[name] += delta
}

// SessionResult is the aggregated outcome of one session, including the
// results of any recursive child sessions it spawned.
type SessionResult struct {
	// SessionID identifies the session this result describes.
	SessionID string `json:"session_id"`
	// Seed is the entity the session explored.
	Seed string `json:"seed"`
	// Depth is the recursion depth the session ran at.
	Depth int `json:"depth"`
	// FinalPhase is the phase the session ended in.
	FinalPhase Phase `json:"final_phase"`
	// Findings is the session's accumulated step output.
	Findings map[string]*Finding `json:"findings"`
	// Discovered lists entity names found during exploration, whether or
	// not they were recursed into.
	Discovered []string `json:"discovered,omitempty"`
	// Tasks lists the per-task outcomes in declaration order.
	Tasks []TaskOutcome `json:"tasks"`
	// Errors lists task errors that exhausted retries.
	Errors []string `json:"errors,omitempty"`
	// Warnings lists non-fatal session notes.
	Warnings []string `json:"warnings,omitempty"`
	// Metrics holds the session's counter values.
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// Elapsed is the total wall-clock time the session took.
	Elapsed time.Duration `json:"elapsed"`
	// TimedOut is set when the session hit its time limit before
	// reaching a terminal phase on its own.
	TimedOut bool `json:"timed_out,omitempty"`
	// Children holds results of recursive child sessions, one per
	// candidate explored at depth+1.
	Children []*SessionResult `json:"children,omitempty"`
}

// TotalSessions returns the number of sessions in this result tree.
func (r *SessionResult) TotalSessions() int {
	n := 1
	for _, c := range r.Children {
		n += c.TotalSessions()
	}
	return n
}
