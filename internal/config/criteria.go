package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/entgraph/entgraph/pkg/models"
)

// LevelRule holds the recursion-admission rules for one depth level.
type LevelRule struct {
	// Depth is the level this rule applies to (candidates admitted AT
	// this depth, i.e. children of a session running at Depth-1).
	Depth int `yaml:"depth"`
	// MinStrength is the minimum relationship strength percentage.
	MinStrength float64 `yaml:"min_strength"`
	// Sectors is an allow-list of sectors; empty admits every sector.
	Sectors []string `yaml:"sectors"`
	// MaxCandidates hard-caps candidates admitted at this level.
	MaxCandidates int `yaml:"max_candidates"`
}

// SectorAllowed reports whether the sector passes this rule's allow-list.
func (r LevelRule) SectorAllowed(sector string) bool {
	if len(r.Sectors) == 0 {
		return true
	}
	for _, s := range r.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// criteriaFile is the YAML layout of a recursion criteria file.
type criteriaFile struct {
	Levels []LevelRule `yaml:"levels"`
}

// Criteria provides per-depth recursion rules with optional hot reload.
// Reads are lock-guarded so a reload never races the controller.
type Criteria struct {
	mu       sync.RWMutex
	levels   map[int]LevelRule
	fallback LevelRule
	path     string
	watcher  *fsnotify.Watcher
}

// DefaultCriteria returns criteria matching the built-in rules: 20%
// minimum strength and at most 5 candidates per level, all sectors.
func DefaultCriteria() *Criteria {
	return &Criteria{
		levels:   make(map[int]LevelRule),
		fallback: LevelRule{MinStrength: 20, MaxCandidates: 5},
	}
}

// LoadCriteria reads per-depth rules from a YAML file.
func LoadCriteria(path string) (*Criteria, error) {
	c := DefaultCriteria()
	c.path = path
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// reload re-reads the criteria file into the level map.
func (c *Criteria) reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading criteria file: %w", err)
	}

	var f criteriaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return models.Configf("parsing criteria file %s: %v", c.path, err)
	}

	levels := make(map[int]LevelRule, len(f.Levels))
	for _, rule := range f.Levels {
		if rule.MaxCandidates < 0 {
			return models.Configf("criteria depth %d: max_candidates must be >= 0", rule.Depth)
		}
		if rule.MinStrength < 0 || rule.MinStrength > 100 {
			return models.Configf("criteria depth %d: min_strength must be in [0,100]", rule.Depth)
		}
		levels[rule.Depth] = rule
	}

	c.mu.Lock()
	c.levels = levels
	c.mu.Unlock()
	return nil
}

// RuleFor returns the rule for a depth level, falling back to the
// default rule when the level has no explicit entry.
func (c *Criteria) RuleFor(depth int) LevelRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if rule, ok := c.levels[depth]; ok {
		return rule
	}
	return c.fallback
}

// Watch hot-reloads the criteria file on change until Close is called.
// A reload failure keeps the previous rules.
func (c *Criteria) Watch() error {
	if c.path == "" {
		return fmt.Errorf("criteria not backed by a file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", c.path, err)
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == c.path && event.Op.Has(fsnotify.Write|fsnotify.Create) {
					// Keep serving the old rules if the new file is bad.
					_ = c.reload()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one is running.
func (c *Criteria) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
