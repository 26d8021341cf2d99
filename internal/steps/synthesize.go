package steps

import (
	"context"
	"sort"

	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// SynthesizeStep folds the session's accumulated findings into a final
// entity profile. Steps that never produced a finding (failed or
// blocked) are omitted from the profile; each omission is recorded as a
// warning rather than inferring a default value.
type SynthesizeStep struct{}

func (s *SynthesizeStep) Name() string        { return StepSynthesize }
func (s *SynthesizeStep) Lane() executil.Lane { return executil.LaneInline }

func (s *SynthesizeStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	profile := map[string]any{"entity": in.Entity}

	var contributing []string
	var confidenceSum float64
	for _, step := range []string{StepIdentify, StepWebData, StepRegistryDocs, StepNews, StepValidate} {
		f := in.Findings[step]
		if f == nil {
			continue
		}
		contributing = append(contributing, step)
		confidenceSum += f.Confidence
	}
	sort.Strings(contributing)

	if v := in.Findings[StepValidate]; v != nil {
		if sector := v.String("sector"); sector != "" {
			profile["sector"] = sector
		}
		if legal := v.String("legal_name"); legal != "" {
			profile["legal_name"] = legal
		}
	}
	if id := in.Findings[StepIdentify]; id != nil {
		if rid := id.String("resolved_id"); rid != "" {
			profile["resolved_id"] = rid
		}
	}

	related := relatedEntities(in.Findings)
	profile["related_entities"] = related
	profile["contributing_steps"] = contributing

	confidence := 0.0
	if len(contributing) > 0 {
		confidence = confidenceSum / float64(len(contributing))
	}

	// Warnings passed down by the engine name the steps whose output
	// was omitted from this profile.
	return &models.Finding{
		Step:       StepSynthesize,
		Data:       profile,
		Confidence: confidence,
		Warnings:   in.Warnings,
	}, nil
}

// relatedEntities lists distinct candidate names across all findings in
// lexical order.
func relatedEntities(findings map[string]*models.Finding) []string {
	seen := map[string]bool{}
	var names []string
	for _, f := range findings {
		for _, cand := range f.Candidates {
			if cand.Name != "" && !seen[cand.Name] {
				seen[cand.Name] = true
				names = append(names, cand.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}
