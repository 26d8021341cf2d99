package steps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/entgraph/entgraph/internal/executil"
	"github.com/entgraph/entgraph/pkg/models"
)

// RegistryDocsStep retrieves the entity's registry filings and parses
// the shareholding table out of them. Parsing is the pipeline's
// CPU-heavy work: it runs on the CPU lane, and when an external
// extractor command is configured it is executed as an isolated process
// through the strategy's command runner.
type RegistryDocsStep struct {
	Strategy *executil.Strategy
	// ExtractorCmd is an optional external document extractor. When set
	// and installed, the raw filing is piped through it before parsing.
	ExtractorCmd string
}

func (s *RegistryDocsStep) Name() string        { return StepRegistryDocs }
func (s *RegistryDocsStep) Lane() executil.Lane { return executil.LaneCPU }

func (s *RegistryDocsStep) Execute(ctx context.Context, in *Input) (*models.Finding, error) {
	identify := in.Findings[StepIdentify]
	resolvedID := in.ResolvedID
	if resolvedID == "" && identify != nil {
		resolvedID = identify.String("resolved_id")
	}
	if resolvedID == "" {
		return nil, models.Permanent(StepRegistryDocs, errors.New("no resolved identity to fetch filings for"))
	}

	if cached := loadCached(in, StepRegistryDocs); cached != nil {
		return cached, nil
	}

	in.countCall()
	entry := lookupEntry(in.Entity, resolvedID)
	if entry == nil {
		return nil, models.Transient(StepRegistryDocs, fmt.Errorf("registry unavailable for %s", resolvedID))
	}

	filing := entry.Filing
	if s.ExtractorCmd != "" && s.Strategy != nil && s.Strategy.CommandAvailable(s.ExtractorCmd) {
		out, err := s.Strategy.RunCommand(ctx, "", s.ExtractorCmd, "-")
		if err == nil && len(out) > 0 {
			filing = string(out)
		}
	}

	candidates, warnings := parseFiling(filing, identify)

	finding := &models.Finding{
		Step: StepRegistryDocs,
		Data: map[string]any{
			"filing_present": filing != "",
			"shareholders":   len(candidates),
		},
		Confidence: filingConfidence(filing),
		Warnings:   warnings,
		Candidates: candidates,
	}
	storeCached(in, StepRegistryDocs, finding)
	return finding, nil
}

// parseFiling reads "HOLDER;PCT;SECTOR" lines into candidates.
func parseFiling(filing string, identify *models.Finding) ([]models.Candidate, []string) {
	sourceConfidence := 0.9
	if identify != nil {
		sourceConfidence = identify.Confidence
	}

	var candidates []models.Candidate
	var warnings []string
	for _, line := range strings.Split(filing, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 2 {
			warnings = append(warnings, "malformed filing line: "+line)
			continue
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			warnings = append(warnings, "unparseable ownership share: "+line)
			continue
		}
		cand := models.Candidate{
			Name:             strings.TrimSpace(fields[0]),
			Strength:         pct,
			SourceConfidence: sourceConfidence,
			Relation:         "shareholder",
		}
		if len(fields) >= 3 {
			cand.Sector = strings.TrimSpace(fields[2])
		}
		candidates = append(candidates, cand)
	}
	return candidates, warnings
}

func filingConfidence(filing string) float64 {
	if filing == "" {
		return 0.4
	}
	return 0.85
}
