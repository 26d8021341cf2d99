package models

// Finding is the structured, confidence-scored output of one step.
// A Finding is immutable once produced; the engine merges it into the
// session keyed by step name.
type Finding struct {
	// Step is the name of the step that produced this finding.
	Step string `json:"step"`
	// Data holds arbitrary keyed values extracted by the step.
	Data map[string]any `json:"data"`
	// Confidence is the step's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	// Warnings lists non-fatal issues encountered while producing the data.
	Warnings []string `json:"warnings,omitempty"`
	// Errors lists recoverable error strings recorded by the step.
	Errors []string `json:"errors,omitempty"`
	// Candidates lists related entities discovered by the step, if any.
	Candidates []Candidate `json:"candidates,omitempty"`
}

// String fetches a string value from the finding data, or "" if absent.
func (f *Finding) String(key string) string {
	if f == nil || f.Data == nil {
		return ""
	}
	s, _ := f.Data[key].(string)
	return s
}

// Candidate is a related entity proposed for recursive exploration.
type Candidate struct {
	// Name is the raw entity name as discovered.
	Name string `json:"name"`
	// ResolvedID is an external identifier (e.g. a company registry
	// number) if the discovering step resolved one.
	ResolvedID string `json:"resolved_id,omitempty"`
	// Strength is the estimated relationship strength as a percentage
	// in [0, 100], e.g. ownership share.
	Strength float64 `json:"strength"`
	// Sector is the entity's business sector, if known.
	Sector string `json:"sector,omitempty"`
	// SourceConfidence is the confidence of the finding that produced
	// this candidate.
	SourceConfidence float64 `json:"source_confidence"`
	// Relation is a qualitative tag describing the relationship
	// (e.g. "subsidiary", "parent", "partner").
	Relation string `json:"relation,omitempty"`
}

// ScoredCandidate pairs a candidate with its computed exploration priority.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`
	// Score is the deterministic priority score in [0, 1].
	Score float64 `json:"score"`
	// Priority is the task priority a child session inherits.
	Priority Priority `json:"priority"`
}
