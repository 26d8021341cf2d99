package steps

import (
	"context"
	"errors"
	"strings"

	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/internal/recursion"
	"github.com/entgraph/entgraph/pkg/models"
)

// NormalizeStep canonicalizes the raw entity name and generates matching
// variants for the identification step. Pure string work, so it runs
// inline on the scheduler's own goroutine.
type NormalizeStep struct{}

func (s *NormalizeStep) Name() string        { return StepNormalize }
func (s *NormalizeStep) Lane() executil.Lane { return executil.LaneInline }

func (s *NormalizeStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	raw := strings.TrimSpace(in.Entity)
	if raw == "" {
		// Nothing to normalize; retrying cannot help.
		return nil, models.Permanent(StepNormalize, errors.New("empty entity name"))
	}

	normalized := recursion.NormalizeIdentity(raw)
	variants := recursion.NameVariants(raw)

	confidence := 0.95
	var warnings []string
	if normalized == "" {
		confidence = 0.2
		warnings = append(warnings, "name reduced to nothing after suffix stripping")
	}

	return &models.Finding{
		Step: StepNormalize,
		Data: map[string]any{
			"raw":        raw,
			"normalized": normalized,
			"variants":   variants,
		},
		Confidence: confidence,
		Warnings:   warnings,
	}, nil
}
