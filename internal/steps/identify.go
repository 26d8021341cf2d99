package steps

import (
	"context"
	"encoding/json"

	"github.com/entgraph/entgraph/internal/cache"
	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// IdentifyStep resolves the normalized name against the company registry
// and pins down an external identifier. Registry lookups are I/O, so the
// step runs on the I/O lane and never consumes a worker slot.
type IdentifyStep struct{}

func (s *IdentifyStep) Name() string        { return StepIdentify }
func (s *IdentifyStep) Lane() executil.Lane { return executil.LaneIO }

func (s *IdentifyStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	if cached := loadCached(in, StepIdentify); cached != nil {
		return cached, nil
	}

	in.countCall()
	entry := lookupEntry(in.Entity, in.ResolvedID)

	if entry == nil {
		// An unresolved identity is a result, not an error: the state
		// machine decides the session cannot proceed past Identifying.
		return &models.Finding{
			Step:       StepIdentify,
			Data:       map[string]any{"matched": false},
			Confidence: 0.1,
			Warnings:   []string{"no registry match for " + in.Entity},
		}, nil
	}

	finding := &models.Finding{
		Step: StepIdentify,
		Data: map[string]any{
			"matched":     true,
			"resolved_id": entry.ID,
			"legal_name":  entry.LegalName,
			"sector":      entry.Sector,
			"website":     entry.Website,
		},
		Confidence: 0.9,
	}
	storeCached(in, StepIdentify, finding)
	return finding, nil
}

// loadCached returns a previously cached finding for this step and
// entity, or nil. Cache trouble is treated as a miss.
func loadCached(in *Input, step string) *models.Finding {
	if in.Cache == nil {
		return nil
	}
	data, ok, err := in.Cache.Get(cache.StepKey(step, in.Entity))
	if err != nil || !ok {
		return nil
	}
	var finding models.Finding
	if json.Unmarshal(data, &finding) != nil {
		return nil
	}
	return &finding
}

// storeCached caches a finding under the step's routed TTL. Failures are
// ignored: the cache is best-effort.
func storeCached(in *Input, step string, finding *models.Finding) {
	if in.Cache == nil {
		return
	}
	data, err := json.Marshal(finding)
	if err != nil {
		return
	}
	_ = in.Cache.Set(cache.StepKey(step, in.Entity), data, in.CacheTTL)
}
