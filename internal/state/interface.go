// Package state provides SQLite-based persistence of exploration outcomes.
package state

import (
	"io"

	"github.com/entgraph/entgraph/pkg/models"
)

// OutcomeWriter is the append-only write path the explorer uses.
type OutcomeWriter interface {
	AppendResult(result *models.SessionResult) error
}

// OutcomeReader is the read path used to inspect and resume past runs.
type OutcomeReader interface {
	GetSession(id string) (*SessionRecord, error)
	ListSessions(limit int) ([]*SessionRecord, error)
	GetFindings(sessionID string) (map[string]*models.Finding, error)
	GetTaskOutcomes(sessionID string) ([]models.TaskOutcome, error)
}

// Migrator handles database schema migrations. Separating this allows
// clients to depend only on migration functionality.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence contract. The explorer treats it as an
// opaque collaborator; any backend satisfying this works.
type Store interface {
	io.Closer
	Migrator
	OutcomeWriter
	OutcomeReader
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ OutcomeWriter = (*DB)(nil)
	_ OutcomeReader = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
)
