package temporalflow

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
)

// StartWorker connects to a Temporal server and runs the autopilot task
// queue worker until interrupted. engine is reused across every workflow
// execution the worker processes.
func StartWorker(hostPort, taskQueue string, engine *autopilot.Engine, logger *slog.Logger) error {
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		return fmt.Errorf("temporalflow: dial temporal server: %w", err)
	}
	defer c.Close()

	w := worker.New(c, taskQueue, worker.Options{})

	acts := &Activities{Engine: engine}

	w.RegisterWorkflow(AutopilotWorkflow)
	w.RegisterActivity(acts.ReportActivity)
	w.RegisterActivity(acts.WriteDeliverablesActivity)
	w.RegisterActivity(acts.AnnotateActivity)
	w.RegisterActivity(acts.CheckWorkingTreeActivity)
	w.RegisterActivity(acts.WeaveActivity)
	w.RegisterActivity(acts.FinalizeActivity)

	logger.Info("temporalflow worker started", "taskQueue", taskQueue, "hostPort", hostPort)
	return w.Run(worker.InterruptCh())
}
