package safety

// Effect is one side-effecting action an autopilot level is about to
// perform — a PR comment, a branch push, a merge — described for
// logging/dry-run purposes rather than executed directly by this
// package.
type Effect struct {
	Kind        string // e.g. "comment", "push", "merge", "close_pr"
	Description string
}

// Executor performs Effects for real. Production code wires a concrete
// Executor (gitcli, forge client); DryRunExecutor wraps it and no-ops
// instead.
type Executor interface {
	Execute(Effect) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(Effect) error

func (f ExecutorFunc) Execute(e Effect) error { return f(e) }

// DryRunExecutor converts every Effect into a recorded no-op instead of
// delegating to Next, satisfying spec.md's "every step optionally
// short-circuits ... on user-configured dry-run" requirement at the
// single point effects are dispatched.
type DryRunExecutor struct {
	Next     Executor
	DryRun   bool
	Recorded []Effect
}

// Execute records e always; when DryRun is false it also delegates to
// Next. When DryRun is true, e is recorded but never actually performed.
func (d *DryRunExecutor) Execute(e Effect) error {
	d.Recorded = append(d.Recorded, e)
	if d.DryRun {
		return nil
	}
	if d.Next == nil {
		return nil
	}
	return d.Next.Execute(e)
}
