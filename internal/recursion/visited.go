package recursion

import "sync"

// VisitedSet records entity identities already explored or in flight
// within one root exploration. Keys are normalized identities; the set
// only grows for the lifetime of the exploration. It is the cycle guard
// shared by the root session and every recursive child.
type VisitedSet struct {
	mu  sync.RWMutex
	set map[string]bool
}

// NewVisitedSet creates an empty visited set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{set: make(map[string]bool)}
}

// Add records an entity as visited. Returns true if the entity was not
// present before, false if it had already been claimed — callers use the
// return to decide which of two racing sessions spawns the child.
func (v *VisitedSet) Add(name string) bool {
	key := NormalizeIdentity(name)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set[key] {
		return false
	}
	v.set[key] = true
	return true
}

// Contains reports whether the entity's normalized identity is present.
func (v *VisitedSet) Contains(name string) bool {
	key := NormalizeIdentity(name)

	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.set[key]
}

// Len returns the number of distinct identities recorded.
func (v *VisitedSet) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.set)
}
