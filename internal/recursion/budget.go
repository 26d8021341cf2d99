package recursion

import (
	"sync/atomic"
	"time"

	"github.com/entgraph/entgraph/internal/config"
)

// Budget tracks process-wide counters for one root exploration against
// configured ceilings. Counters are atomic: sessions running concurrently
// update them without further coordination. Hitting a ceiling is not an
// error; it forces the controller to return no candidates so every
// session drains toward Synthesizing.
type Budget struct {
	limits  config.LimitsConfig
	started time.Time

	entities      atomic.Int64
	externalCalls atomic.Int64
}

// NewBudget creates a budget with its wall clock starting now.
func NewBudget(limits config.LimitsConfig) *Budget {
	return &Budget{limits: limits, started: time.Now()}
}

// CountEntity records one entity entering exploration and returns the
// new total.
func (b *Budget) CountEntity() int64 {
	return b.entities.Add(1)
}

// CountExternalCalls records external lookups made by a step.
func (b *Budget) CountExternalCalls(n int64) int64 {
	return b.externalCalls.Add(n)
}

// Entities returns the number of entities explored so far.
func (b *Budget) Entities() int64 { return b.entities.Load() }

// ExternalCalls returns the number of external calls made so far.
func (b *Budget) ExternalCalls() int64 { return b.externalCalls.Load() }

// Elapsed returns the exploration's wall-clock time so far.
func (b *Budget) Elapsed() time.Duration { return time.Since(b.started) }

// Exceeded reports whether any ceiling has been hit, with the first
// exceeded ceiling named for logs.
func (b *Budget) Exceeded() (bool, string) {
	if b.limits.MaxTotalEntities > 0 && b.entities.Load() >= int64(b.limits.MaxTotalEntities) {
		return true, "max_total_entities"
	}
	if b.limits.MaxWallClock > 0 && b.Elapsed() >= b.limits.MaxWallClock {
		return true, "max_wall_clock"
	}
	if b.limits.MaxExternalCalls > 0 && b.externalCalls.Load() >= b.limits.MaxExternalCalls {
		return true, "max_external_calls"
	}
	return false, ""
}
