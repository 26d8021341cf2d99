package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/entgraph/entgraph/pkg/models"
)

// SessionRecord is the stored summary of one session.
type SessionRecord struct {
	ID         string       `json:"id"`
	Seed       string       `json:"seed"`
	Depth      int          `json:"depth"`
	FinalPhase models.Phase `json:"final_phase"`
	Elapsed    time.Duration `json:"elapsed"`
	TimedOut   bool         `json:"timed_out"`
	ParentID   string       `json:"parent_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// AppendResult writes a session result tree: the session row, its task
// outcomes, its findings, and recursively each child session. Rows are
// never updated afterwards.
func (db *DB) AppendResult(result *models.SessionResult) error {
	return db.appendResult(result, "")
}

func (db *DB) appendResult(result *models.SessionResult, parentID string) error {
	db.mu.Lock()
	tx, err := db.conn.Begin()
	if err != nil {
		db.mu.Unlock()
		return fmt.Errorf("begin append: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sessions (id, seed, depth, final_phase, elapsed_ms, timed_out, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.SessionID, result.Seed, result.Depth, string(result.FinalPhase),
		result.Elapsed.Milliseconds(), boolToInt(result.TimedOut), nullable(parentID),
	)
	if err != nil {
		tx.Rollback()
		db.mu.Unlock()
		return fmt.Errorf("insert session %s: %w", result.SessionID, err)
	}

	for _, task := range result.Tasks {
		_, err = tx.Exec(`
			INSERT INTO task_outcomes (session_id, task_id, step, state, attempts, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.SessionID, task.TaskID, task.Step, string(task.State),
			task.Attempts, task.Error, task.Duration.Milliseconds(),
		)
		if err != nil {
			tx.Rollback()
			db.mu.Unlock()
			return fmt.Errorf("insert task outcome %s: %w", task.TaskID, err)
		}
	}

	for step, finding := range result.Findings {
		payload, err := json.Marshal(finding)
		if err != nil {
			tx.Rollback()
			db.mu.Unlock()
			return fmt.Errorf("marshal finding %s: %w", step, err)
		}
		_, err = tx.Exec(`
			INSERT INTO findings (session_id, step, confidence, payload)
			VALUES (?, ?, ?, ?)`,
			result.SessionID, step, finding.Confidence, string(payload),
		)
		if err != nil {
			tx.Rollback()
			db.mu.Unlock()
			return fmt.Errorf("insert finding %s: %w", step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		db.mu.Unlock()
		return fmt.Errorf("commit append: %w", err)
	}
	db.mu.Unlock()

	for _, child := range result.Children {
		if err := db.appendResult(child, result.SessionID); err != nil {
			return err
		}
	}
	return nil
}

// GetSession returns the stored record for one session.
func (db *DB) GetSession(id string) (*SessionRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, seed, depth, final_phase, elapsed_ms, timed_out, COALESCE(parent_id, ''), created_at
		FROM sessions WHERE id = ?`, id)

	rec, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns stored sessions, newest first.
func (db *DB) ListSessions(limit int) ([]*SessionRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, seed, depth, final_phase, elapsed_ms, timed_out, COALESCE(parent_id, ''), created_at
		FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetFindings reads back a completed session's findings, keyed by step.
// This is the resume path: a caller can seed a new exploration from the
// stored output instead of re-running the lookups.
func (db *DB) GetFindings(sessionID string) (map[string]*models.Finding, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`SELECT step, payload FROM findings WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get findings for %s: %w", sessionID, err)
	}
	defer rows.Close()

	findings := make(map[string]*models.Finding)
	for rows.Next() {
		var step, payload string
		if err := rows.Scan(&step, &payload); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		var finding models.Finding
		if err := json.Unmarshal([]byte(payload), &finding); err != nil {
			return nil, fmt.Errorf("unmarshal finding %s: %w", step, err)
		}
		findings[step] = &finding
	}
	return findings, rows.Err()
}

// GetTaskOutcomes returns the stored per-task outcomes of a session.
func (db *DB) GetTaskOutcomes(sessionID string) ([]models.TaskOutcome, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT task_id, step, state, attempts, COALESCE(error, ''), duration_ms
		FROM task_outcomes WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get task outcomes for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var outcomes []models.TaskOutcome
	for rows.Next() {
		var o models.TaskOutcome
		var state string
		var durationMs int64
		if err := rows.Scan(&o.TaskID, &o.Step, &state, &o.Attempts, &o.Error, &durationMs); err != nil {
			return nil, fmt.Errorf("scan task outcome: %w", err)
		}
		o.State = models.TaskState(state)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var phase string
	var elapsedMs int64
	var timedOut int
	if err := row.Scan(&rec.ID, &rec.Seed, &rec.Depth, &phase, &elapsedMs, &timedOut, &rec.ParentID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.FinalPhase = models.Phase(phase)
	rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	rec.TimedOut = timedOut != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
