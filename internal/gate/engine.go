package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
)

// Engine runs every item's gates within a level, bounded by maxWorkers,
// and produces one plan.GateResult per gate, taken from its final
// attempt. Gates of distinct items run
// concurrently; gates of the same item run sequentially, matching
// spec.md §4.5/§5's concurrency contract.
type Engine struct {
	Local     Runtime
	Container Runtime
	Logger    *slog.Logger

	// ResultsDir is the root gate-results directory, e.g. <profile>/runner/gate-results.
	ResultsDir string

	// MaxWorkers bounds the number of items processed concurrently within
	// a level. Defaults to 1 when <= 0.
	MaxWorkers int
}

// NewEngine builds an Engine with a LocalRuntime always available; the
// container runtime is optional (nil when Docker could not be reached).
func NewEngine(resultsDir string, maxWorkers int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	container, err := NewContainerRuntime("lex-pr-gate:latest")
	if err != nil {
		logger.Warn("container runtime unavailable, gates requesting it will fall back to local", "error", err)
		container = nil
	}
	return &Engine{
		Local:      NewLocalRuntime(),
		Container:  container,
		Logger:     logger,
		ResultsDir: resultsDir,
		MaxWorkers: maxWorkers,
	}
}

func (e *Engine) runtimeFor(name string) Runtime {
	switch name {
	case plan.RuntimeContainer:
		if e.Container != nil {
			return e.Container
		}
		e.Logger.Warn("runtime \"container\" requested but unavailable, falling back to local", "runtime", name)
		return e.Local
	case plan.RuntimeLocal, "":
		return e.Local
	default:
		e.Logger.Warn("unknown gate runtime, falling back to local", "runtime", name)
		return e.Local
	}
}

// ExecuteLevel runs every item's gates concurrently, bounded by
// e.MaxWorkers, and returns all recorded GateResults. It never halts
// early on a single item's failure; every item's results are returned.
func (e *Engine) ExecuteLevel(ctx context.Context, p *plan.Plan, itemNames []string, cwd string) []plan.GateResult {
	names := append([]string{}, itemNames...)
	sort.Strings(names)

	workers := e.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []plan.GateResult
	)

	for _, name := range names {
		item := p.ItemByName(name)
		if item == nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(item plan.PlanItem) {
			defer wg.Done()
			defer func() { <-sem }()
			itemResults := e.executeItem(ctx, item, cwd, p.Policy)
			mu.Lock()
			results = append(results, itemResults...)
			mu.Unlock()
		}(*item)
	}

	wg.Wait()
	return results
}

// executeItem runs item's gates sequentially in declaration order.
func (e *Engine) executeItem(ctx context.Context, item plan.PlanItem, cwd string, policy *plan.Policy) []plan.GateResult {
	if len(item.Gates) == 0 {
		return []plan.GateResult{{
			Item:   item.Name,
			Gate:   "none",
			Status: plan.StatusSkip,
			Meta:   map[string]string{"reason": "item declares no gates"},
		}}
	}

	results := make([]plan.GateResult, 0, len(item.Gates))
	for _, g := range item.Gates {
		if excluded, ok := overrideFor(policy, g.Name); ok && excluded {
			results = append(results, plan.GateResult{
				Item: item.Name, Gate: g.Name, Status: plan.StatusSkip,
				Meta: map[string]string{"reason": "excluded by policy override"},
			})
			continue
		}
		results = append(results, e.executeGate(ctx, item, g, cwd, effectiveRetries(policy, g)))
	}
	return results
}

// overrideFor reports whether policy names an explicit inclusion/exclusion
// for gateName: ok is false when no override is configured.
func overrideFor(policy *plan.Policy, gateName string) (excluded bool, ok bool) {
	if policy == nil || policy.Overrides == nil {
		return false, false
	}
	included, present := policy.Overrides[gateName]
	if !present {
		return false, false
	}
	return !included, true
}

// effectiveRetries applies a policy-level retry override for this gate,
// falling back to the gate's own declared retry count.
func effectiveRetries(policy *plan.Policy, g plan.Gate) int {
	if policy != nil && policy.Retries != nil {
		if n, ok := policy.Retries[g.Name]; ok {
			return n
		}
	}
	return g.Retries
}

// executeGate runs one gate's command, retrying on failure up to retries
// times with exponential backoff. The final attempt's outcome is the
// recorded result.
func (e *Engine) executeGate(ctx context.Context, item plan.PlanItem, g plan.Gate, cwd string, retries int) plan.GateResult {
	resultsDir := filepath.Join(e.ResultsDir, item.Name)
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return plan.GateResult{
			Item: item.Name, Gate: g.Name, Status: plan.StatusFail,
			Meta: map[string]string{"reason": "failed to create results dir: " + err.Error()},
		}
	}

	timeout := time.Duration(g.TimeoutSec) * time.Second
	runtime := e.runtimeFor(g.Runtime)

	resolvedCwd := g.Cwd
	if resolvedCwd == "" {
		resolvedCwd = cwd
	}

	var (
		last     *RunResult
		lastErr  error
		attempts = retries + 1
	)

	start := time.Now()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt-1, 500*time.Millisecond, 30*time.Second)
			select {
			case <-ctx.Done():
				return cancelledResult(item, g, start)
			case <-time.After(delay):
			}
		}

		spec := CommandSpec{
			Item: item.Name, Gate: g.Name, Command: g.Run,
			Cwd: resolvedCwd, Env: g.Env, Timeout: timeout, OutputDir: resultsDir,
		}

		res, err := runtime.Run(ctx, spec)
		if ctx.Err() != nil {
			return cancelledResult(item, g, start)
		}
		if err != nil {
			lastErr = err
			continue
		}
		last = res
		lastErr = nil
		if res.ExitCode == 0 && !res.TimedOut {
			break
		}
	}

	return buildResult(item, g, resolvedCwd, last, lastErr, start)
}

func cancelledResult(item plan.PlanItem, g plan.Gate, start time.Time) plan.GateResult {
	return plan.GateResult{
		Item: item.Name, Gate: g.Name, Status: plan.StatusFail,
		DurationMS: time.Since(start).Milliseconds(),
		StartedAt:  start.UTC().Format(time.RFC3339),
		Meta:       map[string]string{"reason": "cancelled"},
	}
}

func buildResult(item plan.PlanItem, g plan.Gate, cwd string, res *RunResult, runErr error, start time.Time) plan.GateResult {
	result := plan.GateResult{
		Item:       item.Name,
		Gate:       g.Name,
		StartedAt:  start.UTC().Format(time.RFC3339),
		DurationMS: time.Since(start).Milliseconds(),
	}

	if runErr != nil {
		result.Status = plan.StatusFail
		result.Meta = map[string]string{"reason": runErr.Error()}
		return result
	}

	result.StdoutPath = res.StdoutPath
	result.StderrPath = res.StderrPath

	switch {
	case res.TimedOut:
		result.Status = plan.StatusFail
		result.Meta = map[string]string{"reason": "timeout"}
	case res.ExitCode == 0:
		result.Status = plan.StatusPass
	default:
		result.Status = plan.StatusFail
		result.Meta = map[string]string{"reason": fmt.Sprintf("exit code %d", res.ExitCode)}
	}

	if artifacts, err := collectArtifacts(cwd, g.Artifacts); err == nil {
		result.Artifacts = artifacts
	}

	return result
}

// collectArtifacts expands each glob pattern relative to cwd and records
// "<path>@<sha256-hex>" for every matched file, sorted for determinism.
func collectArtifacts(cwd string, patterns []string) ([]string, error) {
	var entries []string
	for _, pattern := range patterns {
		full := pattern
		if cwd != "" && !filepath.IsAbs(pattern) {
			full = filepath.Join(cwd, pattern)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			data, err := os.ReadFile(m)
			if err != nil {
				continue
			}
			sum := sha256.Sum256(data)
			entries = append(entries, fmt.Sprintf("%s@%s", m, hex.EncodeToString(sum[:])))
		}
	}
	sort.Strings(entries)
	return entries, nil
}
