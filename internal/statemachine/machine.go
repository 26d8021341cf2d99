// Package statemachine governs session phase transitions. The engine asks
// the machine to re-evaluate after every task completion; the machine
// answers with the next phase, or nothing when no guard holds yet.
package statemachine

import (
	"github.com/entgraph/entgraph/pkg/models"
)

// Guard is a predicate over accumulated session data. Guards must be
// mutually exclusive per source phase by design, not by evaluation order;
// Validate enforces this on a sampled corpus at startup.
type Guard func(s *models.Session) bool

// Transition is one guarded edge in the phase graph.
type Transition struct {
	// Name labels the transition for logs and validation errors.
	Name string
	// From is the source phase.
	From models.Phase
	// To is the destination phase.
	To models.Phase
	// Guard decides whether the transition fires.
	Guard Guard
}

// Machine is an ordered list of guarded transitions.
type Machine struct {
	transitions []Transition
}

// New creates a machine from an explicit transition list.
func New(transitions []Transition) *Machine {
	return &Machine{transitions: transitions}
}

// Next returns the destination phase of the first transition whose source
// matches the session's phase and whose guard holds. The second return is
// false when no transition fires.
func (m *Machine) Next(s *models.Session) (models.Phase, bool) {
	for _, t := range m.transitions {
		if t.From == s.Phase && t.Guard(s) {
			return t.To, true
		}
	}
	return "", false
}

// phaseRank orders phases so Validate can reject regressing transitions.
var phaseRank = map[models.Phase]int{
	models.PhaseInitializing: 0,
	models.PhaseNormalizing:  1,
	models.PhaseIdentifying:  2,
	models.PhaseCollecting:   3,
	models.PhaseValidating:   4,
	models.PhaseRecursing:    5,
	models.PhaseSynthesizing: 6,
	models.PhaseCompleted:    7,
	models.PhaseFailed:       7,
	models.PhaseCancelled:    7,
}

// Validate checks the machine's structural invariants:
//   - every transition moves the session forward (phases never regress),
//   - no terminal phase has outgoing transitions,
//   - guards from the same source phase are mutually exclusive on the
//     given sample sessions.
//
// Violations are configuration errors: the session must not start.
func (m *Machine) Validate(samples []*models.Session) error {
	for _, t := range m.transitions {
		if t.From.Terminal() {
			return models.Configf("transition %q leaves terminal phase %s", t.Name, t.From)
		}
		if phaseRank[t.To] <= phaseRank[t.From] {
			return models.Configf("transition %q regresses from %s to %s", t.Name, t.From, t.To)
		}
	}

	for _, s := range samples {
		var fired []string
		for _, t := range m.transitions {
			if t.From == s.Phase && t.Guard(s) {
				fired = append(fired, t.Name)
			}
		}
		if len(fired) > 1 {
			return models.Configf("ambiguous guards in phase %s: %v both enabled", s.Phase, fired)
		}
	}
	return nil
}
