package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/entgraph/entgraph/internal/config"
	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/internal/steps"
	"github.com/entgraph/entgraph/pkg/models"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Retry.BaseDelay = time.Millisecond
	return cfg
}

type fakeStep struct {
	name string
	fn   func(ctx context.Context, in *steps.Input) (*models.Finding, error)
}

func (s *fakeStep) Name() string        { return s.name }
func (s *fakeStep) Lane() executil.Lane { return executil.LaneInline }

func (s *fakeStep) Execute(ctx context.Context, in *steps.Input) (*models.Finding, error) {
	return s.fn(ctx, in)
}

type stepFn func(ctx context.Context, in *steps.Input) (*models.Finding, error)

// fakeRegistry registers a stand-in for every pipeline step, with
// overrides for the behaviors under test.
func fakeRegistry(t *testing.T, overrides map[string]stepFn) *steps.Registry {
	t.Helper()

	ok := func(name string) stepFn {
		return func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			f := &models.Finding{Step: name, Confidence: 0.9, Data: map[string]any{}}
			if name == steps.StepIdentify {
				f.Data["resolved_id"] = "552120222"
			}
			return f, nil
		}
	}

	r := steps.NewRegistry()
	for _, name := range []string{
		steps.StepNormalize, steps.StepIdentify, steps.StepWebData,
		steps.StepRegistryDocs, steps.StepNews, steps.StepValidate,
		steps.StepSynthesize,
	} {
		fn := overrides[name]
		if fn == nil {
			fn = ok(name)
		}
		if err := r.Register(&fakeStep{name: name, fn: fn}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	return r
}

func outcomeFor(t *testing.T, res *models.SessionResult, id string) models.TaskOutcome {
	t.Helper()
	for _, o := range res.Tasks {
		if o.TaskID == id {
			return o
		}
	}
	t.Fatalf("no outcome for task %s in %v", id, res.Tasks)
	return models.TaskOutcome{}
}

func TestRunSessionCompletesPipeline(t *testing.T) {
	events := make(chan Event, 128)
	engine := NewEngine(testConfig(), WithEvents(events))
	session := models.NewSession("root", "Acme Corp", 0, 0)

	res := engine.RunSession(context.Background(), session)

	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("phase = %s, want completed (errors: %v)", res.FinalPhase, res.Errors)
	}

	wantOrder := []string{
		steps.StepNormalize, steps.StepIdentify, steps.StepRegistryDocs,
		steps.StepWebData, steps.StepNews, steps.StepValidate, steps.StepSynthesize,
	}
	if len(res.Tasks) != len(wantOrder) {
		t.Fatalf("tasks = %d, want %d", len(res.Tasks), len(wantOrder))
	}
	for i, id := range wantOrder {
		if res.Tasks[i].TaskID != id {
			t.Errorf("tasks[%d] = %s, want %s", i, res.Tasks[i].TaskID, id)
		}
		if res.Tasks[i].State != models.TaskCompleted {
			t.Errorf("task %s state = %s, want completed", id, res.Tasks[i].State)
		}
	}

	if got := res.Metrics["tasks_completed"]; got != 7 {
		t.Errorf("tasks_completed = %v, want 7", got)
	}
	if len(res.Discovered) != 5 {
		t.Errorf("discovered = %v, want 5 names", res.Discovered)
	}
	if res.Findings[steps.StepSynthesize] == nil {
		t.Error("synthesize finding missing from result")
	}

	close(events)
	var started, phases int
	for ev := range events {
		switch ev.Type {
		case EventSessionStarted:
			started++
		case EventPhaseChanged:
			phases++
		}
	}
	if started != 1 {
		t.Errorf("session_started events = %d, want 1", started)
	}
	if phases < 6 {
		t.Errorf("phase_changed events = %d, want at least 6", phases)
	}
}

func TestRunSessionSpawnsChildren(t *testing.T) {
	var acceptedNames []string
	spawner := func(ctx context.Context, parent *models.Session) []*models.SessionResult {
		for _, sc := range parent.Accepted {
			acceptedNames = append(acceptedNames, sc.Candidate.Name)
		}
		return []*models.SessionResult{{SessionID: "child-1", Seed: "ACME HOLDINGS", Depth: 1}}
	}

	engine := NewEngine(testConfig(), WithChildSpawner(spawner))
	session := models.NewSession("root", "Acme Corp", 0, 1)

	res := engine.RunSession(context.Background(), session)

	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("phase = %s, want completed (errors: %v)", res.FinalPhase, res.Errors)
	}
	if len(res.Children) != 1 || res.Children[0].SessionID != "child-1" {
		t.Fatalf("children = %v, want the spawned child", res.Children)
	}

	// Candidates arrive ordered by descending score; the 4% shareholder
	// fails the default strength floor and the near-duplicate press
	// mention loses the dedup to the stronger filing record.
	want := []string{"ACME HOLDINGS", "BOREAL SERVICES", "Cobalt Logistics"}
	if len(acceptedNames) != len(want) {
		t.Fatalf("accepted = %v, want %v", acceptedNames, want)
	}
	for i, name := range want {
		if acceptedNames[i] != name {
			t.Errorf("accepted[%d] = %q, want %q", i, acceptedNames[i], name)
		}
	}
}

func TestRunSessionIdentifyPermanentFailure(t *testing.T) {
	registry := fakeRegistry(t, map[string]stepFn{
		steps.StepIdentify: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			return nil, models.Permanent(steps.StepIdentify, errors.New("registry rejected the query"))
		},
	})

	engine := NewEngine(testConfig(), WithRegistry(registry))
	session := models.NewSession("root", "Acme Corp", 0, 2)

	res := engine.RunSession(context.Background(), session)

	if res.FinalPhase != models.PhaseFailed {
		t.Fatalf("phase = %s, want failed", res.FinalPhase)
	}
	identify := outcomeFor(t, res, steps.StepIdentify)
	if identify.State != models.TaskFailed {
		t.Errorf("identify state = %s, want failed", identify.State)
	}
	if identify.Attempts != 1 {
		t.Errorf("identify attempts = %d, want 1 for a permanent failure", identify.Attempts)
	}
	if len(res.Errors) == 0 {
		t.Error("failed session carries no errors")
	}
}

func TestRunSessionExhaustsTransientRetries(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxRetries = 2

	registry := fakeRegistry(t, map[string]stepFn{
		steps.StepIdentify: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			return nil, models.Transient(steps.StepIdentify, errors.New("registry flapping"))
		},
	})

	engine := NewEngine(cfg, WithRegistry(registry))
	res := engine.RunSession(context.Background(), models.NewSession("root", "Acme Corp", 0, 2))

	if res.FinalPhase != models.PhaseFailed {
		t.Fatalf("phase = %s, want failed", res.FinalPhase)
	}
	identify := outcomeFor(t, res, steps.StepIdentify)
	if identify.Attempts != 3 {
		t.Errorf("identify attempts = %d, want MaxRetries+1 = 3", identify.Attempts)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one entry for identify", res.Errors)
	}
	if !strings.Contains(res.Errors[0], steps.StepIdentify) {
		t.Errorf("error %q does not name the identify step", res.Errors[0])
	}
}

// TestRunSessionStartOrderRespectsDependencies records the order steps
// begin executing and checks no step starts before everything it
// depends on has run.
func TestRunSessionStartOrderRespectsDependencies(t *testing.T) {
	var mu sync.Mutex
	var started []string
	record := func(name string) stepFn {
		return func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			mu.Lock()
			started = append(started, name)
			mu.Unlock()
			f := &models.Finding{Step: name, Confidence: 0.9, Data: map[string]any{}}
			if name == steps.StepIdentify {
				f.Data["resolved_id"] = "552120222"
			}
			return f, nil
		}
	}

	overrides := make(map[string]stepFn)
	for _, name := range []string{
		steps.StepNormalize, steps.StepIdentify, steps.StepWebData,
		steps.StepRegistryDocs, steps.StepNews, steps.StepValidate,
		steps.StepSynthesize,
	} {
		overrides[name] = record(name)
	}

	engine := NewEngine(testConfig(), WithRegistry(fakeRegistry(t, overrides)))
	res := engine.RunSession(context.Background(), models.NewSession("root", "Acme Corp", 0, 0))
	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("phase = %s, want completed (errors: %v)", res.FinalPhase, res.Errors)
	}

	pos := make(map[string]int, len(started))
	for i, name := range started {
		pos[name] = i
	}
	deps := map[string][]string{
		steps.StepIdentify:     {steps.StepNormalize},
		steps.StepWebData:      {steps.StepIdentify},
		steps.StepRegistryDocs: {steps.StepIdentify},
		steps.StepNews:         {steps.StepIdentify},
		steps.StepValidate:     {steps.StepWebData, steps.StepRegistryDocs, steps.StepNews},
		steps.StepSynthesize:   {steps.StepValidate},
	}
	for name, wants := range deps {
		at, ok := pos[name]
		if !ok {
			t.Fatalf("step %s never started (order: %v)", name, started)
		}
		for _, dep := range wants {
			if depAt, ok := pos[dep]; !ok || depAt >= at {
				t.Errorf("step %s started before %s (order: %v)", name, dep, started)
			}
		}
	}
}

// A step that bubbles up its own deadline error has failed; only the
// session's shutdown makes a context error a cancellation.
func TestRunSessionStepDeadlineErrorIsFailure(t *testing.T) {
	registry := fakeRegistry(t, map[string]stepFn{
		steps.StepWebData: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			return nil, context.DeadlineExceeded
		},
	})

	engine := NewEngine(testConfig(), WithRegistry(registry))
	res := engine.RunSession(context.Background(), models.NewSession("root", "Acme Corp", 0, 2))

	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("phase = %s, want completed (errors: %v)", res.FinalPhase, res.Errors)
	}
	webdata := outcomeFor(t, res, steps.StepWebData)
	if webdata.State != models.TaskFailed {
		t.Errorf("webdata state = %s, want failed", webdata.State)
	}
	if got := outcomeFor(t, res, steps.StepValidate).State; got != models.TaskBlocked {
		t.Errorf("validate state = %s, want blocked", got)
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, steps.StepWebData) {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want a webdata entry", res.Errors)
	}
	if res.TimedOut {
		t.Error("step-level deadline must not mark the session timed out")
	}
}

func TestRunSessionBlockedValidateStillSynthesizes(t *testing.T) {
	var omitted []string
	registry := fakeRegistry(t, map[string]stepFn{
		steps.StepRegistryDocs: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			return nil, models.Permanent(steps.StepRegistryDocs, errors.New("filing archive corrupt"))
		},
		steps.StepSynthesize: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			omitted = in.Warnings
			return &models.Finding{Step: steps.StepSynthesize, Warnings: in.Warnings}, nil
		},
	})

	engine := NewEngine(testConfig(), WithRegistry(registry))
	res := engine.RunSession(context.Background(), models.NewSession("root", "Acme Corp", 0, 2))

	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("phase = %s, want completed despite failed collector (errors: %v)", res.FinalPhase, res.Errors)
	}
	if got := outcomeFor(t, res, steps.StepRegistryDocs).State; got != models.TaskFailed {
		t.Errorf("registrydocs state = %s, want failed", got)
	}
	if got := outcomeFor(t, res, steps.StepValidate).State; got != models.TaskBlocked {
		t.Errorf("validate state = %s, want blocked", got)
	}

	if len(omitted) != 2 {
		t.Fatalf("synthesis omission notes = %v, want 2", omitted)
	}
	if !strings.Contains(omitted[0], steps.StepRegistryDocs) || !strings.Contains(omitted[1], steps.StepValidate) {
		t.Errorf("omission notes = %v, want registrydocs then validate", omitted)
	}
}

func TestRunSessionCancelled(t *testing.T) {
	registry := fakeRegistry(t, map[string]stepFn{
		steps.StepWebData: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(30*time.Millisecond, cancel)
	defer timer.Stop()

	engine := NewEngine(testConfig(), WithRegistry(registry))
	res := engine.RunSession(ctx, models.NewSession("root", "Acme Corp", 0, 2))

	if res.FinalPhase != models.PhaseCancelled {
		t.Fatalf("phase = %s, want cancelled", res.FinalPhase)
	}
	if res.TimedOut {
		t.Error("external cancellation should not report a timeout")
	}
	if got := outcomeFor(t, res, steps.StepWebData).State; got != models.TaskCancelled {
		t.Errorf("webdata state = %s, want cancelled", got)
	}
}

func TestRunSessionTimeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.SessionTimeLimit = 50 * time.Millisecond

	registry := fakeRegistry(t, map[string]stepFn{
		steps.StepNormalize: func(ctx context.Context, in *steps.Input) (*models.Finding, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	engine := NewEngine(cfg, WithRegistry(registry))
	res := engine.RunSession(context.Background(), models.NewSession("root", "Acme Corp", 0, 2))

	if res.FinalPhase != models.PhaseFailed {
		t.Fatalf("phase = %s, want failed", res.FinalPhase)
	}
	if !res.TimedOut {
		t.Error("timed-out session should report TimedOut")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "time limit") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want a time limit note", res.Errors)
	}
}
