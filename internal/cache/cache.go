// Package cache provides the key/value cache collaborator steps use to
// skip recomputation. A miss is never a hard failure: callers get
// (nil, false, nil) and simply do the work.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrefixStep namespaces cached step results.
const PrefixStep = "step:"

// Cache is the collaborator contract: get-or-miss reads and TTL writes.
type Cache interface {
	// Get returns the cached value and true, or (nil, false) on a miss.
	// The error is reserved for infrastructure failures; a plain miss
	// is not an error.
	Get(key string) ([]byte, bool, error)
	// Set stores a value with a time-to-live.
	Set(key string, value []byte, ttl time.Duration) error
	// Close releases the underlying store.
	Close() error
}

// StepKey builds the cache key for a step's result on an entity.
func StepKey(step, entity string) string {
	return PrefixStep + step + ":" + strings.ToUpper(strings.TrimSpace(entity))
}

// ParseTTL parses durations in the policy file's shorthand: "30s",
// "15m", "12h", "7d", or a bare number of seconds.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty ttl")
	}

	unit := time.Second
	num := s
	switch s[len(s)-1] {
	case 's':
		num = s[:len(s)-1]
	case 'm':
		unit = time.Minute
		num = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		num = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		num = s[:len(s)-1]
	}

	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q", s)
	}
	return time.Duration(n) * unit, nil
}
