package steps

import (
	"context"
	"errors"

	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// NewsStep extracts related-entity mentions from press coverage. The
// per-article extraction is light but parallelizable, so articles fan
// out over the bounded worker pool.
type NewsStep struct {
	Strategy *executil.Strategy
}

func (s *NewsStep) Name() string        { return StepNews }
func (s *NewsStep) Lane() executil.Lane { return executil.LanePool }

func (s *NewsStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	identify := in.Findings[StepIdentify]
	resolvedID := in.ResolvedID
	if resolvedID == "" && identify != nil {
		resolvedID = identify.String("resolved_id")
	}
	if resolvedID == "" {
		return nil, models.Permanent(StepNews, errors.New("no resolved identity to search press for"))
	}

	if cached := loadCached(in, StepNews); cached != nil {
		return cached, nil
	}

	in.countCall()
	entry := lookupEntry(in.Entity, resolvedID)
	if entry == nil || len(entry.Articles) == 0 {
		return &models.Finding{
			Step:       StepNews,
			Data:       map[string]any{"articles": 0},
			Confidence: 0.5,
		}, nil
	}

	candidates, err := s.extractAll(ctx, entry.Articles)
	if err != nil {
		return nil, models.Transient(StepNews, err)
	}

	finding := &models.Finding{
		Step: StepNews,
		Data: map[string]any{
			"articles": len(entry.Articles),
			"mentions": len(candidates),
		},
		Confidence: 0.7,
		Candidates: candidates,
	}
	storeCached(in, StepNews, finding)
	return finding, nil
}

// extractAll runs one extraction per article across the worker pool and
// flattens the results in article order.
func (s *NewsStep) extractAll(ctx context.Context, articles []article) ([]models.Candidate, error) {
	work := make([]executil.Work, len(articles))
	for i, a := range articles {
		a := a
		work[i] = func(ctx context.Context) (any, error) {
			return extractMentions(a), nil
		}
	}

	results, err := s.Strategy.RunBatch(ctx, StepNews, work)
	if err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, r := range results {
		candidates = append(candidates, r.([]models.Candidate)...)
	}
	return candidates, nil
}

// extractMentions converts an article's entity mentions into candidates.
// Deal amounts map onto relationship strength: one million EUR equals
// one strength point, capped at 100. Untagged mentions get a flat 25.
func extractMentions(a article) []models.Candidate {
	var candidates []models.Candidate
	for _, m := range a.Mentions {
		strength := 25.0
		if m.AmountEUR > 0 {
			strength = m.AmountEUR / 1_000_000
			if strength > 100 {
				strength = 100
			}
		}
		candidates = append(candidates, models.Candidate{
			Name:             m.Name,
			Strength:         strength,
			SourceConfidence: 0.7,
			Relation:         m.Relation,
		})
	}
	return candidates
}
