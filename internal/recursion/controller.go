package recursion

import (
	"sort"

	"github.com/agext/levenshtein"

	"github.com/entgraph/entgraph/internal/config"
	"github.com/entgraph/entgraph/pkg/models"
)

// Controller filters and prioritizes related-entity candidates for
// recursive exploration. SelectCandidates is deterministic and does not
// mutate the visited set; the engine claims identities when it actually
// spawns a child session.
type Controller struct {
	criteria  *config.Criteria
	visited   *VisitedSet
	budget    *Budget
	weights   config.ScoreWeights
	threshold float64
	params    *levenshtein.Params
}

// NewController creates a controller sharing the exploration's visited
// set and budget.
func NewController(criteria *config.Criteria, visited *VisitedSet, budget *Budget, rc config.RecursionConfig) *Controller {
	return &Controller{
		criteria:  criteria,
		visited:   visited,
		budget:    budget,
		weights:   rc.Weights,
		threshold: rc.SimilarityThreshold,
		params:    levenshtein.NewParams(),
	}
}

// SelectCandidates returns the candidates admitted for exploration at
// childDepth, ordered by descending priority score with a lexical
// tie-break on name. An exceeded budget ceiling yields an empty list
// regardless of otherwise-qualifying candidates.
func (c *Controller) SelectCandidates(findings map[string]*models.Finding, childDepth int) []models.ScoredCandidate {
	if exceeded, _ := c.budget.Exceeded(); exceeded {
		return nil
	}

	rule := c.criteria.RuleFor(childDepth)
	if rule.MaxCandidates == 0 {
		return nil
	}

	// Gather in deterministic step-name order so dedup winners do not
	// depend on map iteration.
	var candidates []models.Candidate
	for _, step := range sortedSteps(findings) {
		candidates = append(candidates, findings[step].Candidates...)
	}

	// Cycle avoidance first: anything already explored or in flight is
	// dropped unconditionally before scoring.
	var fresh []models.Candidate
	for _, cand := range candidates {
		if cand.Name == "" || c.visited.Contains(cand.Name) {
			continue
		}
		fresh = append(fresh, cand)
	}

	// Per-depth admission rules.
	var admitted []models.Candidate
	for _, cand := range fresh {
		if cand.Strength < rule.MinStrength {
			continue
		}
		if !rule.SectorAllowed(cand.Sector) {
			continue
		}
		admitted = append(admitted, cand)
	}

	deduped := c.dedup(admitted)

	scored := make([]models.ScoredCandidate, 0, len(deduped))
	for _, cand := range deduped {
		score := c.score(cand, rule)
		scored = append(scored, models.ScoredCandidate{
			Candidate: cand,
			Score:     score,
			Priority:  priorityFor(score),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Candidate.Name < scored[j].Candidate.Name
	})

	if rule.MaxCandidates > 0 && len(scored) > rule.MaxCandidates {
		scored = scored[:rule.MaxCandidates]
	}
	return scored
}

// dedup collapses candidates that are the same entity: normalized-name
// similarity above the threshold, or a shared resolved identifier. The
// candidate with higher relationship strength wins; losers are dropped,
// not merged.
func (c *Controller) dedup(candidates []models.Candidate) []models.Candidate {
	var kept []models.Candidate
	for _, cand := range candidates {
		replaced := false
		duplicate := false
		for i, existing := range kept {
			if !c.sameEntity(cand, existing) {
				continue
			}
			duplicate = true
			if cand.Strength > existing.Strength {
				kept[i] = cand
				replaced = true
			}
			break
		}
		if !duplicate && !replaced {
			kept = append(kept, cand)
		}
	}
	return kept
}

// sameEntity applies the dedup rule from the admission policy.
func (c *Controller) sameEntity(a, b models.Candidate) bool {
	if a.ResolvedID != "" && a.ResolvedID == b.ResolvedID {
		return true
	}
	sim := levenshtein.Similarity(NormalizeIdentity(a.Name), NormalizeIdentity(b.Name), c.params)
	return sim > c.threshold
}

// score blends relationship strength, sector match, and source
// confidence into [0, 1].
func (c *Controller) score(cand models.Candidate, rule config.LevelRule) float64 {
	strength := cand.Strength / 100
	if strength > 1 {
		strength = 1
	}

	var sector float64
	switch {
	case len(rule.Sectors) > 0:
		// Allow-listed sectors already passed the filter.
		sector = 1
	case cand.Sector != "":
		sector = 0.5
	}

	confidence := cand.SourceConfidence
	if confidence > 1 {
		confidence = 1
	}

	s := c.weights.Strength*strength + c.weights.Sector*sector + c.weights.Confidence*confidence
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s
}

// priorityFor maps a score onto the task priority the child inherits.
func priorityFor(score float64) models.Priority {
	switch {
	case score >= 0.8:
		return models.PriorityCritical
	case score >= 0.6:
		return models.PriorityHigh
	case score >= 0.4:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// sortedSteps returns finding keys in lexical order.
func sortedSteps(findings map[string]*models.Finding) []string {
	steps := make([]string, 0, len(findings))
	for step := range findings {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	return steps
}
