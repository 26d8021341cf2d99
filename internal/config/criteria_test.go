package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCriteria(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "criteria.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultCriteriaFallback(t *testing.T) {
	c := DefaultCriteria()

	rule := c.RuleFor(3)
	if rule.MinStrength != 20 {
		t.Errorf("expected fallback min strength 20, got %g", rule.MinStrength)
	}
	if rule.MaxCandidates != 5 {
		t.Errorf("expected fallback cap 5, got %d", rule.MaxCandidates)
	}
	if !rule.SectorAllowed("anything") {
		t.Error("fallback must allow every sector")
	}
}

func TestLoadCriteria(t *testing.T) {
	path := writeCriteria(t, t.TempDir(), `levels:
  - depth: 1
    min_strength: 30
    sectors: [finance, services]
    max_candidates: 3
  - depth: 2
    min_strength: 60
    max_candidates: 1
`)

	c, err := LoadCriteria(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r1 := c.RuleFor(1)
	if r1.MinStrength != 30 || r1.MaxCandidates != 3 {
		t.Errorf("unexpected depth-1 rule: %+v", r1)
	}
	if r1.SectorAllowed("logistics") {
		t.Error("logistics should fail the depth-1 allow-list")
	}
	if !r1.SectorAllowed("finance") {
		t.Error("finance should pass the depth-1 allow-list")
	}

	r2 := c.RuleFor(2)
	if r2.MinStrength != 60 || r2.MaxCandidates != 1 {
		t.Errorf("unexpected depth-2 rule: %+v", r2)
	}

	// Unlisted depth falls back.
	if r3 := c.RuleFor(3); r3.MinStrength != 20 {
		t.Errorf("expected fallback for depth 3, got %+v", r3)
	}
}

func TestLoadCriteriaRejectsBadRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative cap", "levels:\n  - depth: 1\n    max_candidates: -1\n"},
		{"strength out of range", "levels:\n  - depth: 1\n    min_strength: 150\n"},
		{"not yaml", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCriteria(t, t.TempDir(), tt.content)
			if _, err := LoadCriteria(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeCriteria(t, dir, "levels:\n  - depth: 1\n    min_strength: 30\n    max_candidates: 3\n")

	c, err := LoadCriteria(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer c.Close()

	writeCriteria(t, dir, "levels:\n  - depth: 1\n    min_strength: 70\n    max_candidates: 3\n")

	deadline := time.After(2 * time.Second)
	for {
		if c.RuleFor(1).MinStrength == 70 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("rule never reloaded, still %+v", c.RuleFor(1))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatchKeepsOldRulesOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeCriteria(t, dir, "levels:\n  - depth: 1\n    min_strength: 30\n    max_candidates: 3\n")

	c, err := LoadCriteria(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer c.Close()

	writeCriteria(t, dir, "{{{")
	time.Sleep(200 * time.Millisecond)

	if got := c.RuleFor(1).MinStrength; got != 30 {
		t.Errorf("bad reload must keep old rules, got min strength %g", got)
	}
}

func TestWatchWithoutFile(t *testing.T) {
	if err := DefaultCriteria().Watch(); err == nil {
		t.Error("expected error watching criteria with no backing file")
	}
}
