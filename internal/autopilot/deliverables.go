package autopilot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/deliverables"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
)

// writeDeliverables implements L1: it writes analysis.json,
// weave-report.md, gate-predictions.json, execution-log.md, and
// metadata.json into a fresh "weave-<ts>/" directory and finalizes the
// manifest (which also repoints "latest").
func (e *Engine) writeDeliverables(p *plan.Plan, levels [][]string, recs []ItemRecommendation, deliverablesRoot string, now time.Time) (*deliverables.Run, error) {
	if err := e.Profile.CheckWrite(); err != nil {
		return nil, err
	}

	ts := now.UTC().Format("20060102T150405Z")
	run, err := deliverables.NewRun(deliverablesRoot, ts, "", "", now)
	if err != nil {
		return nil, err
	}
	run.SetLevelExecuted(e.Config.MaxLevel)

	analysis, err := json.MarshalIndent(map[string]any{"levels": levels, "recommendations": recs}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("autopilot: marshal analysis: %w", err)
	}
	if err := run.RegisterArtifact("analysis.json", "analysis", analysis); err != nil {
		return nil, err
	}

	if err := run.RegisterArtifact("weave-report.md", "report", []byte(renderWeaveReport(p, levels, recs))); err != nil {
		return nil, err
	}

	predictions, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("autopilot: marshal predictions: %w", err)
	}
	if err := run.RegisterArtifact("gate-predictions.json", "predictions", predictions); err != nil {
		return nil, err
	}

	if err := run.RegisterArtifact("execution-log.md", "log", []byte(fmt.Sprintf("# Execution log\n\nRun started at %s\n", now.UTC().Format(time.RFC3339)))); err != nil {
		return nil, err
	}

	metadata, err := json.MarshalIndent(map[string]any{
		"target":   p.Target,
		"maxLevel": e.Config.MaxLevel,
		"dryRun":   e.Config.DryRun,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("autopilot: marshal metadata: %w", err)
	}
	if err := run.RegisterArtifact("metadata.json", "metadata", metadata); err != nil {
		return nil, err
	}

	if err := run.Finalize(); err != nil {
		return nil, err
	}
	return run, nil
}

func renderWeaveReport(p *plan.Plan, levels [][]string, recs []ItemRecommendation) string {
	report := fmt.Sprintf("# Weave report: %s\n\n", p.Target)
	for i, names := range levels {
		report += fmt.Sprintf("## Level %d\n\n", i)
		for _, name := range names {
			for _, rec := range recs {
				if rec.Name == name {
					report += fmt.Sprintf("- %s: %s (%s)\n", name, rec.Recommendation, rec.Eligibility)
				}
			}
		}
		report += "\n"
	}
	return report
}

// deliverablesRootFor computes the deliverables root from a resolved
// profile directory.
func deliverablesRootFor(profileDir string) string {
	return filepath.Join(profileDir, "deliverables")
}
