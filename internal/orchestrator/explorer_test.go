package orchestrator

import (
	"context"
	"testing"

	"github.com/entgraph/entgraph/internal/config"
	"github.com/entgraph/entgraph/pkg/models"
)

func explorerConfig() *config.Config {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	return cfg
}

func newTestExplorer(t *testing.T, cfg *config.Config) *Explorer {
	t.Helper()
	x, err := NewExplorer(cfg)
	if err != nil {
		t.Fatalf("NewExplorer() error = %v", err)
	}
	t.Cleanup(func() {
		if err := x.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return x
}

func childBySeed(t *testing.T, res *models.SessionResult, seed string) *models.SessionResult {
	t.Helper()
	for _, c := range res.Children {
		if c.Seed == seed {
			return c
		}
	}
	t.Fatalf("no child with seed %q under %q", seed, res.Seed)
	return nil
}

func TestExploreRecursesToDepthLimit(t *testing.T) {
	x := newTestExplorer(t, explorerConfig())

	res, err := x.Explore(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("Explore() error = %v", err)
	}

	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("root phase = %s, want completed (errors: %v)", res.FinalPhase, res.Errors)
	}
	if got := res.TotalSessions(); got != 5 {
		t.Fatalf("total sessions = %d, want 5", got)
	}
	if len(res.Children) != 3 {
		t.Fatalf("root children = %d, want 3", len(res.Children))
	}

	holdings := childBySeed(t, res, "ACME HOLDINGS")
	if holdings.Depth != 1 || holdings.FinalPhase != models.PhaseCompleted {
		t.Errorf("holdings child depth=%d phase=%s, want 1/completed", holdings.Depth, holdings.FinalPhase)
	}
	if len(holdings.Children) != 1 {
		t.Fatalf("holdings children = %d, want 1", len(holdings.Children))
	}
	granite := holdings.Children[0]
	if granite.Seed != "GRANITE CAPITAL" || granite.Depth != 2 {
		t.Errorf("grandchild = %q depth %d, want GRANITE CAPITAL at depth 2", granite.Seed, granite.Depth)
	}
	// Depth 2 is the ceiling: the grandchild never recurses.
	if len(granite.Children) != 0 {
		t.Errorf("grandchild spawned %d children, want 0", len(granite.Children))
	}

	for _, seed := range []string{"BOREAL SERVICES", "Cobalt Logistics"} {
		c := childBySeed(t, res, seed)
		if c.FinalPhase != models.PhaseCompleted {
			t.Errorf("child %q phase = %s, want completed", seed, c.FinalPhase)
		}
		if len(c.Children) != 0 {
			t.Errorf("child %q spawned %d children, want 0", seed, len(c.Children))
		}
	}
}

func TestExploreEntityBudgetStopsRecursion(t *testing.T) {
	cfg := explorerConfig()
	cfg.Limits.MaxTotalEntities = 1
	x := newTestExplorer(t, cfg)

	res, err := x.Explore(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("Explore() error = %v", err)
	}
	if res.FinalPhase != models.PhaseCompleted {
		t.Fatalf("root phase = %s, want completed (errors: %v)", res.FinalPhase, res.Errors)
	}
	if got := res.TotalSessions(); got != 1 {
		t.Errorf("total sessions = %d, want 1 under the entity ceiling", got)
	}
	// Discovery is still reported even when recursion is off the table.
	if len(res.Discovered) == 0 {
		t.Error("budget-limited root reported no discovered entities")
	}
}

func TestExploreEmptySeed(t *testing.T) {
	x := newTestExplorer(t, explorerConfig())
	if _, err := x.Explore(context.Background(), ""); err == nil {
		t.Fatal("Explore(\"\") should fail")
	}
}

func TestExploreCancelledContext(t *testing.T) {
	x := newTestExplorer(t, explorerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := x.Explore(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("Explore() error = %v", err)
	}
	if res.FinalPhase != models.PhaseCancelled {
		t.Errorf("phase = %s, want cancelled", res.FinalPhase)
	}
}

func TestNewExplorerRejectsInvalidConfig(t *testing.T) {
	cfg := explorerConfig()
	cfg.Engine.MaxConcurrentTasks = 0
	if _, err := NewExplorer(cfg); err == nil {
		t.Fatal("NewExplorer() should reject zero task concurrency")
	}
}
