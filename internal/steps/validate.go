package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// ValidateStep cross-checks the collected findings for consistency and
// resolves conflicts between sources: the higher-confidence source wins
// and the losing value is recorded as a warning, never silently merged.
type ValidateStep struct{}

func (s *ValidateStep) Name() string        { return StepValidate }
func (s *ValidateStep) Lane() executil.Lane { return executil.LaneInline }

func (s *ValidateStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	identify := in.Findings[StepIdentify]
	if identify == nil {
		return nil, models.Permanent(StepValidate, errors.New("nothing to validate without identification"))
	}

	var warnings []string
	var errs []string

	sector, sectorWarnings := resolveField("sector", identify, in.Findings[StepWebData])
	warnings = append(warnings, sectorWarnings...)

	legal, legalWarnings := resolveField("legal_name", identify, in.Findings[StepWebData])
	warnings = append(warnings, legalWarnings...)

	// Ownership shares over 100% total mean at least one source is wrong.
	if docs := in.Findings[StepRegistryDocs]; docs != nil {
		var total float64
		for _, cand := range docs.Candidates {
			if cand.Relation == "shareholder" {
				total += cand.Strength
			}
		}
		if total > 100 {
			errs = append(errs, fmt.Sprintf("shareholding total exceeds 100%%: %.1f", total))
		}
	}

	present := 0
	var confidenceSum float64
	for _, step := range []string{StepIdentify, StepWebData, StepRegistryDocs, StepNews} {
		if f := in.Findings[step]; f != nil {
			present++
			confidenceSum += f.Confidence
		}
	}
	confidence := 0.0
	if present > 0 {
		confidence = confidenceSum / float64(present)
	}
	if len(errs) > 0 {
		confidence = confidence / 2
	}

	return &models.Finding{
		Step: StepValidate,
		Data: map[string]any{
			"sector":          sector,
			"legal_name":      legal,
			"sources_present": present,
			"conflicts":       len(warnings),
			"inconsistencies": len(errs),
		},
		Confidence: confidence,
		Warnings:   warnings,
		Errors:     errs,
	}, nil
}

// resolveField picks a field value across sources by confidence. The
// primary source is identification; a disagreeing secondary source loses
// and leaves a warning behind.
func resolveField(key string, primary, secondary *models.Finding) (string, []string) {
	pv := primary.String(key)
	if secondary == nil {
		return pv, nil
	}
	sv := secondary.String(key)
	if sv == "" || sv == pv {
		return pv, nil
	}
	if pv == "" {
		return sv, nil
	}

	if secondary.Confidence > primary.Confidence {
		return sv, []string{fmt.Sprintf("%s conflict: dropped %q from %s", key, pv, primary.Step)}
	}
	return pv, []string{fmt.Sprintf("%s conflict: dropped %q from %s", key, sv, secondary.Step)}
}
