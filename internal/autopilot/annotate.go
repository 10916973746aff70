package autopilot

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/lex-pr-runner/internal/safety"
)

// annotate implements L2: post one status comment per item via the
// forge adapter, templated from Config.CommentTemplate when set. Dry
// run converts every post into a recorded no-op via DryRunExecutor.
func (e *Engine) annotate(ctx context.Context, recs []ItemRecommendation) error {
	if e.Forge == nil {
		return fmt.Errorf("autopilot: level %d requires a forge client", LevelAnnotate)
	}
	if err := e.Profile.CheckWrite(); err != nil {
		return err
	}

	executor := &safety.DryRunExecutor{
		DryRun: e.Config.DryRun,
		Next: safety.ExecutorFunc(func(eff safety.Effect) error {
			return e.Forge.PostComment(ctx, eff.Description, renderComment(e.Config.CommentTemplate, eff.Description))
		}),
	}

	for _, rec := range recs {
		if err := executor.Execute(safety.Effect{Kind: "comment", Description: rec.Name}); err != nil {
			return fmt.Errorf("autopilot: annotate %s: %w", rec.Name, err)
		}
	}
	return nil
}

func renderComment(template, item string) string {
	if template == "" {
		return fmt.Sprintf("lex-pr-runner: %s evaluated", item)
	}
	return template
}
