package orchestrator

import (
	"github.com/entgraph/entgraph/internal/graph"
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

// taskTemplate describes one task a phase contributes to the session
// pipeline. Task ID equals the step name.
type taskTemplate struct {
	step     string
	priority models.Priority
	deps     []string
}

// phaseTemplates maps each working phase to the tasks injected on entry.
// Dependencies may name tasks from earlier phases; tasksFor drops any
// dependency whose task was never injected, so a child session that skips
// identification still gets runnable collectors.
var phaseTemplates = map[models.Phase][]taskTemplate{
	models.PhaseNormalizing: {
		{step: steps.StepNormalize, priority: models.PriorityHigh},
	},
	models.PhaseIdentifying: {
		{step: steps.StepIdentify, priority: models.PriorityHigh, deps: []string{steps.StepNormalize}},
	},
	models.PhaseCollecting: {
		{step: steps.StepRegistryDocs, priority: models.PriorityHigh, deps: []string{steps.StepIdentify}},
		{step: steps.StepWebData, priority: models.PriorityMedium, deps: []string{steps.StepIdentify}},
		{step: steps.StepNews, priority: models.PriorityMedium, deps: []string{steps.StepIdentify}},
	},
	models.PhaseValidating: {
		{step: steps.StepValidate, priority: models.PriorityHigh, deps: []string{steps.StepWebData, steps.StepRegistryDocs, steps.StepNews}},
	},
	models.PhaseSynthesizing: {
		{step: steps.StepSynthesize, priority: models.PriorityCritical},
	},
}

// tasksFor builds the task set injected when a session enters phase.
// order continues across phases so declaration order is stable for the
// whole session.
func tasksFor(phase models.Phase, g *graph.DependencyGraph, order *int) []*models.Task {
	templates := phaseTemplates[phase]
	if len(templates) == 0 {
		return nil
	}

	tasks := make([]*models.Task, 0, len(templates))
	for _, tpl := range templates {
		var deps []string
		for _, d := range tpl.deps {
			if g.Task(d) != nil {
				deps = append(deps, d)
			}
		}
		tasks = append(tasks, &models.Task{
			ID:        tpl.step,
			Step:      tpl.step,
			Priority:  tpl.priority,
			DependsOn: deps,
			Order:     *order,
			State:     models.TaskPending,
		})
		*order++
	}
	return tasks
}
