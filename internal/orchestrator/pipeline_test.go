package orchestrator

import (
	"testing"

	"github.com/entgraph/entgraph/internal/graph"
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

func TestTasksForBuildsPipelineAcrossPhases(t *testing.T) {
	g := graph.New()
	order := 0

	norm := tasksFor(models.PhaseNormalizing, g, &order)
	if len(norm) != 1 || norm[0].ID != steps.StepNormalize {
		t.Fatalf("normalizing tasks = %v, want [normalize]", norm)
	}
	if norm[0].Order != 0 {
		t.Errorf("normalize order = %d, want 0", norm[0].Order)
	}
	if err := g.Add(norm); err != nil {
		t.Fatalf("Add(normalize) error = %v", err)
	}

	ident := tasksFor(models.PhaseIdentifying, g, &order)
	if len(ident) != 1 {
		t.Fatalf("identifying tasks = %d, want 1", len(ident))
	}
	if len(ident[0].DependsOn) != 1 || ident[0].DependsOn[0] != steps.StepNormalize {
		t.Errorf("identify deps = %v, want [normalize]", ident[0].DependsOn)
	}
	if err := g.Add(ident); err != nil {
		t.Fatalf("Add(identify) error = %v", err)
	}

	coll := tasksFor(models.PhaseCollecting, g, &order)
	if len(coll) != 3 {
		t.Fatalf("collecting tasks = %d, want 3", len(coll))
	}
	for _, task := range coll {
		if len(task.DependsOn) != 1 || task.DependsOn[0] != steps.StepIdentify {
			t.Errorf("collector %s deps = %v, want [identify]", task.ID, task.DependsOn)
		}
	}
	// Order keeps counting across phases.
	if coll[0].Order != 2 || coll[2].Order != 4 {
		t.Errorf("collector orders = %d..%d, want 2..4", coll[0].Order, coll[2].Order)
	}
}

func TestTasksForDropsDepsNeverInjected(t *testing.T) {
	// A session entering Collecting directly never ran identify; its
	// collectors must be immediately runnable.
	g := graph.New()
	order := 0

	coll := tasksFor(models.PhaseCollecting, g, &order)
	for _, task := range coll {
		if len(task.DependsOn) != 0 {
			t.Errorf("collector %s deps = %v, want none", task.ID, task.DependsOn)
		}
	}

	if err := g.Add(coll); err != nil {
		t.Fatalf("Add(collectors) error = %v", err)
	}
	if got := len(g.Ready()); got != 3 {
		t.Errorf("ready collectors = %d, want 3", got)
	}
}

func TestTasksForTerminalPhase(t *testing.T) {
	g := graph.New()
	order := 0
	if tasks := tasksFor(models.PhaseCompleted, g, &order); tasks != nil {
		t.Errorf("tasksFor(completed) = %v, want nil", tasks)
	}
}
