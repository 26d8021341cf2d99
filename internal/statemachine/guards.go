package statemachine

import (
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

// DefaultMachine returns the exploration phase machine.
//
// Child sessions whose candidate already carries a resolved identifier
// re-enter at Collecting; everything else starts the full pipeline at
// Normalizing.
func DefaultMachine() *Machine {
	return New([]Transition{
		{
			Name: "init_to_collecting",
			From: models.PhaseInitializing,
			To:   models.PhaseCollecting,
			Guard: func(s *models.Session) bool {
				return s.ResolvedID != ""
			},
		},
		{
			Name: "init_to_normalizing",
			From: models.PhaseInitializing,
			To:   models.PhaseNormalizing,
			Guard: func(s *models.Session) bool {
				return s.ResolvedID == ""
			},
		},
		{
			Name: "normalizing_to_identifying",
			From: models.PhaseNormalizing,
			To:   models.PhaseIdentifying,
			Guard: func(s *models.Session) bool {
				return s.Finding(steps.StepNormalize) != nil
			},
		},
		{
			Name: "normalizing_to_failed",
			From: models.PhaseNormalizing,
			To:   models.PhaseFailed,
			Guard: func(s *models.Session) bool {
				return taskDeadEnd(s, steps.StepNormalize)
			},
		},
		{
			Name: "identifying_to_collecting",
			From: models.PhaseIdentifying,
			To:   models.PhaseCollecting,
			Guard: func(s *models.Session) bool {
				f := s.Finding(steps.StepIdentify)
				return f != nil && f.String("resolved_id") != ""
			},
		},
		{
			// Identification that never resolves an identity is
			// unrecoverable: there is nothing to collect against.
			Name: "identifying_to_failed",
			From: models.PhaseIdentifying,
			To:   models.PhaseFailed,
			Guard: func(s *models.Session) bool {
				if taskDeadEnd(s, steps.StepIdentify) {
					return true
				}
				f := s.Finding(steps.StepIdentify)
				return f != nil && f.String("resolved_id") == ""
			},
		},
		{
			Name: "collecting_to_validating",
			From: models.PhaseCollecting,
			To:   models.PhaseValidating,
			Guard: func(s *models.Session) bool {
				return s.TasksTerminal(steps.StepWebData, steps.StepRegistryDocs, steps.StepNews)
			},
		},
		{
			Name: "validating_to_recursing",
			From: models.PhaseValidating,
			To:   models.PhaseRecursing,
			Guard: func(s *models.Session) bool {
				return validationSettled(s) && len(s.Accepted) > 0 && s.Depth < s.MaxDepth
			},
		},
		{
			// Complement of validating_to_recursing: no surviving
			// candidates, or depth exhausted.
			Name: "validating_to_synthesizing",
			From: models.PhaseValidating,
			To:   models.PhaseSynthesizing,
			Guard: func(s *models.Session) bool {
				return validationSettled(s) && (len(s.Accepted) == 0 || s.Depth >= s.MaxDepth)
			},
		},
		{
			Name: "recursing_to_synthesizing",
			From: models.PhaseRecursing,
			To:   models.PhaseSynthesizing,
			Guard: func(s *models.Session) bool {
				return s.ChildrenDone
			},
		},
		{
			Name: "synthesizing_to_completed",
			From: models.PhaseSynthesizing,
			To:   models.PhaseCompleted,
			Guard: func(s *models.Session) bool {
				return s.Finding(steps.StepSynthesize) != nil
			},
		},
		{
			Name: "synthesizing_to_failed",
			From: models.PhaseSynthesizing,
			To:   models.PhaseFailed,
			Guard: func(s *models.Session) bool {
				return taskDeadEnd(s, steps.StepSynthesize)
			},
		},
	})
}

// taskDeadEnd reports whether a task reached a terminal state without
// producing a finding.
func taskDeadEnd(s *models.Session, taskID string) bool {
	st, ok := s.TaskStates[taskID]
	if !ok || !st.Terminal() {
		return false
	}
	return st != models.TaskCompleted
}

// validationSettled reports whether the validate task is terminal. The
// task may end Blocked when every collector failed; the session still
// moves on so the scheduler never sticks.
func validationSettled(s *models.Session) bool {
	return s.TasksTerminal(steps.StepValidate)
}

// SampleSessions generates a corpus of session shapes covering the guard
// conditions of the default machine. Validate runs the ambiguity check
// against these at engine construction.
func SampleSessions() []*models.Session {
	var samples []*models.Session

	add := func(phase models.Phase, mutate func(*models.Session)) {
		s := models.NewSession("sample", "Sample Corp", 0, 2)
		s.Phase = phase
		if mutate != nil {
			mutate(s)
		}
		samples = append(samples, s)
	}

	add(models.PhaseInitializing, nil)
	add(models.PhaseInitializing, func(s *models.Session) { s.ResolvedID = "552120222" })

	add(models.PhaseNormalizing, nil)
	add(models.PhaseNormalizing, func(s *models.Session) {
		s.Findings[steps.StepNormalize] = &models.Finding{Step: steps.StepNormalize}
		s.TaskStates[steps.StepNormalize] = models.TaskCompleted
	})
	add(models.PhaseNormalizing, func(s *models.Session) {
		s.TaskStates[steps.StepNormalize] = models.TaskFailed
	})

	add(models.PhaseIdentifying, nil)
	add(models.PhaseIdentifying, func(s *models.Session) {
		s.Findings[steps.StepIdentify] = &models.Finding{
			Step: steps.StepIdentify,
			Data: map[string]any{"resolved_id": "552120222"},
		}
		s.TaskStates[steps.StepIdentify] = models.TaskCompleted
	})
	add(models.PhaseIdentifying, func(s *models.Session) {
		s.Findings[steps.StepIdentify] = &models.Finding{Step: steps.StepIdentify, Data: map[string]any{}}
		s.TaskStates[steps.StepIdentify] = models.TaskCompleted
	})
	add(models.PhaseIdentifying, func(s *models.Session) {
		s.TaskStates[steps.StepIdentify] = models.TaskBlocked
	})

	add(models.PhaseCollecting, nil)
	add(models.PhaseCollecting, func(s *models.Session) {
		s.TaskStates[steps.StepWebData] = models.TaskCompleted
		s.TaskStates[steps.StepRegistryDocs] = models.TaskFailed
		s.TaskStates[steps.StepNews] = models.TaskCompleted
	})

	accepted := []models.ScoredCandidate{{
		Candidate: models.Candidate{Name: "Acme Holdings", Strength: 60},
		Score:     0.7,
		Priority:  models.PriorityHigh,
	}}

	add(models.PhaseValidating, nil)
	add(models.PhaseValidating, func(s *models.Session) {
		s.TaskStates[steps.StepValidate] = models.TaskCompleted
		s.Accepted = accepted
	})
	add(models.PhaseValidating, func(s *models.Session) {
		s.TaskStates[steps.StepValidate] = models.TaskCompleted
	})
	add(models.PhaseValidating, func(s *models.Session) {
		s.TaskStates[steps.StepValidate] = models.TaskBlocked
		s.Accepted = accepted
		s.Depth = s.MaxDepth
	})

	add(models.PhaseRecursing, nil)
	add(models.PhaseRecursing, func(s *models.Session) { s.ChildrenDone = true })

	add(models.PhaseSynthesizing, nil)
	add(models.PhaseSynthesizing, func(s *models.Session) {
		s.Findings[steps.StepSynthesize] = &models.Finding{Step: steps.StepSynthesize}
		s.TaskStates[steps.StepSynthesize] = models.TaskCompleted
	})
	add(models.PhaseSynthesizing, func(s *models.Session) {
		s.TaskStates[steps.StepSynthesize] = models.TaskFailed
	})

	return samples
}
