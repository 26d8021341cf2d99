package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/entgraph/entgraph/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Step: id, State: models.TaskPending, DependsOn: deps}
}

func TestNewGraph(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestAddWithDependencies(t *testing.T) {
	g := New()
	err := g.Add([]*models.Task{
		task("a"),
		task("b", "a"),
		task("c", "a", "b"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
	if deps := g.Dependencies("c"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for c, got %d", len(deps))
	}
	if dependents := g.Dependents("a"); len(dependents) != 2 {
		t.Errorf("expected 2 dependents for a, got %d", len(dependents))
	}
}

func TestAddAcrossPhases(t *testing.T) {
	g := New()
	if err := g.Add([]*models.Task{task("identify")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A later phase may depend on tasks already in the graph.
	if err := g.Add([]*models.Task{task("webdata", "identify")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("expected size 2, got %d", g.Size())
	}
}

func TestAddDuplicate(t *testing.T) {
	g := New()
	if err := g.Add([]*models.Task{task("a")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Add([]*models.Task{task("a")}); err == nil {
		t.Error("expected error adding duplicate task")
	}
}

func TestAddUnknownDependency(t *testing.T) {
	g := New()
	err := g.Add([]*models.Task{task("a", "missing")})
	if err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestCycleDetection(t *testing.T) {
	g := New()
	err := g.Add([]*models.Task{
		task("a", "c"),
		task("b", "a"),
		task("c", "b"),
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestReady(t *testing.T) {
	g := New()
	if err := g.Add([]*models.Task{
		task("a"),
		task("b", "a"),
		task("c", "a"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != "a" {
		t.Fatalf("expected only a ready, got %v", readyIDs(ready))
	}

	g.Task("a").State = models.TaskCompleted
	g.MarkComplete("a")

	ids := readyIDs(g.Ready())
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Errorf("expected b and c ready, got %v", ids)
	}
}

func TestReadyExcludesNonPending(t *testing.T) {
	g := New()
	if err := g.Add([]*models.Task{task("a"), task("b")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Task("a").State = models.TaskRunning

	ids := readyIDs(g.Ready())
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("expected only b ready, got %v", ids)
	}
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	if err := g.Add([]*models.Task{
		task("a"),
		task("b", "a"),
		task("c", "b"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("dependencies must precede dependents, got %v", order)
	}
}

func TestTransitiveDependents(t *testing.T) {
	g := New()
	if err := g.Add([]*models.Task{
		task("identify"),
		task("webdata", "identify"),
		task("registrydocs", "identify"),
		task("validate", "webdata", "registrydocs"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := g.TransitiveDependents("identify")
	sort.Strings(got)
	want := []string{"registrydocs", "validate", "webdata"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

// TestReadyNeverPrecedesDependencies drives randomized DAGs through the
// Ready/MarkComplete cycle and checks that a task only becomes ready
// once every declared dependency has completed, regardless of shape or
// completion order.
func TestReadyNeverPrecedesDependencies(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(12)
		tasks := make([]*models.Task, n)
		for i := 0; i < n; i++ {
			var deps []string
			// Edges only point at earlier nodes, so every generated
			// graph is acyclic.
			for j := 0; j < i; j++ {
				if rng.Intn(100) < 30 {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			tasks[i] = task(fmt.Sprintf("t%d", i), deps...)
		}

		g := New()
		if err := g.Add(tasks); err != nil {
			t.Fatalf("trial %d: Add() error = %v", trial, err)
		}

		completed := make(map[string]bool, n)
		for len(completed) < n {
			ready := g.Ready()
			if len(ready) == 0 {
				t.Fatalf("trial %d: wedged with %d of %d tasks completed", trial, len(completed), n)
			}
			for _, task := range ready {
				for _, dep := range task.DependsOn {
					if !completed[dep] {
						t.Fatalf("trial %d: task %s ready before dependency %s completed", trial, task.ID, dep)
					}
				}
			}
			// Complete one ready task at random; the invariant must
			// hold for every interleaving.
			pick := ready[rng.Intn(len(ready))]
			pick.State = models.TaskCompleted
			g.MarkComplete(pick.ID)
			completed[pick.ID] = true
		}
	}
}

func readyIDs(tasks []*models.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}
