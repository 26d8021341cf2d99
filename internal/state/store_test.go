package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/entgraph/entgraph/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleResult() *models.SessionResult {
	return &models.SessionResult{
		SessionID:  "root-1",
		Seed:       "Acme Corp",
		Depth:      0,
		FinalPhase: models.PhaseCompleted,
		Findings: map[string]*models.Finding{
			"identify": {
				Step:       "identify",
				Data:       map[string]any{"resolved_id": "552120222"},
				Confidence: 0.9,
			},
		},
		Tasks: []models.TaskOutcome{
			{TaskID: "normalize", Step: "normalize", State: models.TaskCompleted, Attempts: 1, Duration: 5 * time.Millisecond},
			{TaskID: "identify", Step: "identify", State: models.TaskCompleted, Attempts: 2, Duration: 40 * time.Millisecond},
		},
		Elapsed: 750 * time.Millisecond,
		Children: []*models.SessionResult{
			{
				SessionID:  "child-1",
				Seed:       "Acme Holdings",
				Depth:      1,
				FinalPhase: models.PhaseFailed,
				TimedOut:   true,
				Tasks: []models.TaskOutcome{
					{TaskID: "registrydocs", Step: "registrydocs", State: models.TaskFailed, Attempts: 4, Error: "registry unavailable"},
				},
				Elapsed: 300 * time.Millisecond,
			},
		},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Errorf("second migrate must be a no-op: %v", err)
	}
}

func TestAppendAndGetSession(t *testing.T) {
	db := openTestDB(t)
	if err := db.AppendResult(sampleResult()); err != nil {
		t.Fatalf("append: %v", err)
	}

	rec, err := db.GetSession("root-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Seed != "Acme Corp" || rec.Depth != 0 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.FinalPhase != models.PhaseCompleted {
		t.Errorf("expected completed, got %s", rec.FinalPhase)
	}
	if rec.Elapsed != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", rec.Elapsed)
	}
	if rec.ParentID != "" {
		t.Errorf("root must have no parent, got %q", rec.ParentID)
	}
}

func TestAppendLinksChildren(t *testing.T) {
	db := openTestDB(t)
	if err := db.AppendResult(sampleResult()); err != nil {
		t.Fatalf("append: %v", err)
	}

	child, err := db.GetSession("child-1")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if child.ParentID != "root-1" {
		t.Errorf("expected parent root-1, got %q", child.ParentID)
	}
	if !child.TimedOut {
		t.Error("expected timed_out to round trip")
	}
}

func TestListSessions(t *testing.T) {
	db := openTestDB(t)
	if err := db.AppendResult(sampleResult()); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := db.ListSessions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(records))
	}
}

func TestGetFindings(t *testing.T) {
	db := openTestDB(t)
	if err := db.AppendResult(sampleResult()); err != nil {
		t.Fatalf("append: %v", err)
	}

	findings, err := db.GetFindings("root-1")
	if err != nil {
		t.Fatalf("get findings: %v", err)
	}
	f := findings["identify"]
	if f == nil {
		t.Fatal("expected identify finding")
	}
	if f.String("resolved_id") != "552120222" {
		t.Errorf("unexpected resolved id %q", f.String("resolved_id"))
	}
	if f.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %g", f.Confidence)
	}
}

func TestGetTaskOutcomes(t *testing.T) {
	db := openTestDB(t)
	if err := db.AppendResult(sampleResult()); err != nil {
		t.Fatalf("append: %v", err)
	}

	outcomes, err := db.GetTaskOutcomes("root-1")
	if err != nil {
		t.Fatalf("get outcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].TaskID != "normalize" || outcomes[1].TaskID != "identify" {
		t.Errorf("outcomes out of insertion order: %v", outcomes)
	}
	if outcomes[1].Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", outcomes[1].Attempts)
	}
}

func TestDuplicateAppendFails(t *testing.T) {
	db := openTestDB(t)
	result := sampleResult()
	if err := db.AppendResult(result); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.AppendResult(result); err == nil {
		t.Error("expected primary key violation on duplicate append")
	}
}
