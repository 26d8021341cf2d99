package steps

import (
	"context"
	"errors"

	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// WebDataStep collects the entity's public web presence: site metadata,
// declared activity, contact surface. I/O-bound.
type WebDataStep struct{}

func (s *WebDataStep) Name() string        { return StepWebData }
func (s *WebDataStep) Lane() executil.Lane { return executil.LaneIO }

func (s *WebDataStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	identify := in.Findings[StepIdentify]
	resolvedID := in.ResolvedID
	if resolvedID == "" && identify != nil {
		resolvedID = identify.String("resolved_id")
	}
	if resolvedID == "" {
		return nil, models.Permanent(StepWebData, errors.New("no resolved identity to collect against"))
	}

	if cached := loadCached(in, StepWebData); cached != nil {
		return cached, nil
	}

	in.countCall()
	entry := lookupEntry(in.Entity, resolvedID)
	if entry == nil || entry.Website == "" {
		return &models.Finding{
			Step:       StepWebData,
			Data:       map[string]any{"website_found": false},
			Confidence: 0.3,
			Warnings:   []string{"no web presence found"},
		}, nil
	}

	finding := &models.Finding{
		Step: StepWebData,
		Data: map[string]any{
			"website_found": true,
			"website":       entry.Website,
			"sector":        entry.Sector,
			"legal_name":    entry.LegalName,
		},
		Confidence: 0.8,
	}
	storeCached(in, StepWebData, finding)
	return finding, nil
}
