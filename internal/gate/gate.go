// Package gate implements the gate execution engine: per-item, per-gate
// command execution with retries, timeouts, artifact capture, and bounded
// concurrency across a plan level.
package gate

import (
	"context"
	"time"
)

// Runtime executes a single gate command to completion and reports its
// outcome. local and container are the two built-in implementations;
// any other runtime name configured on a Gate falls back to local with a
// logged warning (see Engine.runtimeFor).
type Runtime interface {
	Run(ctx context.Context, spec CommandSpec) (*RunResult, error)
}

// CommandSpec is everything a Runtime needs to execute one gate attempt.
type CommandSpec struct {
	Item      string
	Gate      string
	Command   string
	Cwd       string
	Env       map[string]string
	Timeout   time.Duration
	OutputDir string // directory stdout/stderr files are written under, e.g. <profile>/runner/gate-results/<item>
}

// RunResult is the outcome of a single runtime attempt, before retry logic
// and meta-reason annotation are applied.
type RunResult struct {
	ExitCode   int
	TimedOut   bool
	StdoutPath string
	StderrPath string
	Duration   time.Duration
}
