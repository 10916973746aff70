package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/canon"
	"github.com/antigravity-dev/lex-pr-runner/internal/depgraph"
	"github.com/antigravity-dev/lex-pr-runner/internal/forge"
	"github.com/antigravity-dev/lex-pr-runner/internal/gate"
	"github.com/antigravity-dev/lex-pr-runner/internal/loader"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/profile"
	"github.com/antigravity-dev/lex-pr-runner/internal/safety"
	"github.com/antigravity-dev/lex-pr-runner/internal/temporalflow"
	"gopkg.in/yaml.v3"
)

func configureLogger(dev bool) *slog.Logger {
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LEX_PR_LOG_FORMAT")))
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if dev || format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// exitCode maps the error taxonomy's distinct Go types to spec.md §6's
// three exit codes: 0 success, 2 validation failure, 1 everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		schemaErr  *plan.SchemaValidationError
		jsonErr    *plan.InvalidJSONError
		cycleErr   *depgraph.CycleError
		unknownDep *depgraph.UnknownDependencyError
		selfDep    *depgraph.SelfDependencyError
		cfgErr     *autopilot.ConfigError
		writeProt  *profile.WriteProtectionError
	)
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &jsonErr),
		errors.As(err, &cycleErr), errors.As(err, &unknownDep),
		errors.As(err, &selfDep), errors.As(err, &cfgErr),
		errors.As(err, &writeProt):
		return 2
	default:
		return 1
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "plan":
		err = runPlan(ctx, os.Args[2:])
	case "merge-order":
		err = runMergeOrder(ctx, os.Args[2:])
	case "schema":
		err = runSchema(os.Args[2:])
	case "execute":
		err = runExecute(ctx, os.Args[2:])
	case "status":
		err = runStatus(ctx, os.Args[2:])
	case "report":
		err = runReport(ctx, os.Args[2:])
	case "doctor":
		err = runDoctor(ctx, os.Args[2:])
	case "bootstrap":
		err = runBootstrap(os.Args[2:])
	case "autopilot":
		err = runAutopilot(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "lex-pr: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "lex-pr %s: %v\n", os.Args[1], err)
	}
	os.Exit(exitCode(err))
}

func usage() {
	fmt.Fprintln(os.Stderr, `lex-pr <command> [flags]

Commands:
  plan          resolve stack.yml/scope.yml into plan.json
  merge-order   print the plan's dependency levels
  schema validate <plan.json>   validate a plan document
  execute       run gates for one dependency level
  status        print dependency levels and merge eligibility
  report        print per-item merge recommendations
  doctor        check the local environment for common problems
  bootstrap     scaffold a writable profile directory
  autopilot     run the L0-L4 autopilot pipeline`)
}

// commonFlags are accepted by every subcommand that touches a profile.
type commonFlags struct {
	profileDir string
	dev        bool
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.profileDir, "profile-dir", "", "profile directory (default: resolved per LEX_PR_PROFILE_DIR/.smartergpt precedence)")
	fs.BoolVar(&c.dev, "dev", false, "use text log format instead of JSON")
	return c
}

func resolveProfile(c *commonFlags) (*profile.Profile, *profile.Env, error) {
	env, err := profile.FromEnviron()
	if err != nil {
		return nil, nil, fmt.Errorf("read environment: %w", err)
	}
	override := c.profileDir
	if override == "" {
		override = env.ProfileDirOverride
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getwd: %w", err)
	}
	prof, err := profile.Resolve(cwd, override)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve profile: %w", err)
	}
	return prof, env, nil
}

// buildForgeQuerier peeks scope.yml's repo field (best-effort, ignoring
// a missing file) and wires a forge.Client scoped to it. A nil return is
// valid: loader.Load treats a nil ForgeQuerier as "no forge configured".
func buildForgeQuerier(profileDir, token string) loader.ForgeQuerier {
	data, err := os.ReadFile(filepath.Join(profileDir, "scope.yml"))
	if err != nil {
		return nil
	}
	var scope struct {
		Repo string `yaml:"repo"`
	}
	if err := yaml.Unmarshal(data, &scope); err != nil || scope.Repo == "" {
		return nil
	}
	owner, repo, found := strings.Cut(scope.Repo, "/")
	if !found {
		return nil
	}
	return forge.NewClient(owner, repo, token)
}

func loadResolvedPlan(ctx context.Context, c *commonFlags) (*plan.Plan, *profile.Profile, *profile.Env, []string, error) {
	prof, env, err := resolveProfile(c)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	querier := buildForgeQuerier(prof.Dir, env.GitHubToken)
	p, _, warnings, err := loader.Load(ctx, prof.Dir, querier)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return p, prof, env, warnings, nil
}

func runPlan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	c := bindCommonFlags(fs)
	out := fs.String("out", "", "write plan.json here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := configureLogger(c.dev)

	p, _, _, warnings, err := loadResolvedPlan(ctx, c)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("plan load warning", "warning", w)
	}

	data, err := canon.Marshal(p)
	if err != nil {
		return fmt.Errorf("canonicalize plan: %w", err)
	}

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func runMergeOrder(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("merge-order", flag.ExitOnError)
	c := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configureLogger(c.dev)

	p, _, _, _, err := loadResolvedPlan(ctx, c)
	if err != nil {
		return err
	}
	levels, err := p.Levelize()
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(levels)
}

func runSchema(args []string) error {
	if len(args) < 1 || args[0] != "validate" {
		return fmt.Errorf(`usage: lex-pr schema validate <plan.json>`)
	}
	fs := flag.NewFlagSet("schema validate", flag.ExitOnError)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: lex-pr schema validate <plan.json>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read %s: %w", fs.Arg(0), err)
	}
	if _, err := plan.LoadPlan(data); err != nil {
		return err
	}
	fmt.Println("valid")
	return nil
}

func runExecute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	c := bindCommonFlags(fs)
	resultsDir := fs.String("results-dir", "", "gate results directory (default: <profile>/runner/gate-results)")
	cwd := fs.String("cwd", "", "working directory gate commands run in (default: current directory)")
	level := fs.Int("level", 0, "dependency level to execute (0-based)")
	maxWorkers := fs.Int("max-workers", 0, "bound concurrent item execution within the level (0 = plan default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := configureLogger(c.dev)

	p, prof, _, _, err := loadResolvedPlan(ctx, c)
	if err != nil {
		return err
	}
	levels, err := p.Levelize()
	if err != nil {
		return err
	}
	if *level < 0 || *level >= len(levels) {
		return fmt.Errorf("level %d out of range (plan has %d levels)", *level, len(levels))
	}

	dir := *resultsDir
	if dir == "" {
		dir = filepath.Join(prof.Dir, "runner", "gate-results")
	}
	workers := *maxWorkers
	if workers <= 0 {
		workers = p.EffectiveMaxWorkers()
	}
	workdir := *cwd
	if workdir == "" {
		if workdir, err = os.Getwd(); err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
	}

	engine := gate.NewEngine(dir, workers, logger)
	results := engine.ExecuteLevel(ctx, p, levels[*level], workdir)

	failed := false
	for _, r := range results {
		if r.Status != plan.StatusPass && r.Status != plan.StatusSkip {
			failed = true
		}
	}
	if err := json.NewEncoder(os.Stdout).Encode(results); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("one or more gates did not pass in level %d", *level)
	}
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	c := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configureLogger(c.dev)

	p, prof, _, _, err := loadResolvedPlan(ctx, c)
	if err != nil {
		return err
	}
	cfg, err := autopilot.NewConfig(autopilot.Config{MaxLevel: autopilot.LevelReportOnly})
	if err != nil {
		return err
	}
	eng := autopilot.NewEngine(cfg, prof, nil, nil, "integration/", nil)
	levels, recs, err := eng.Report(p)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(struct {
		Levels          [][]string                     `json:"levels"`
		Recommendations []autopilot.ItemRecommendation `json:"recommendations"`
	}{Levels: levels, Recommendations: recs})
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	c := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configureLogger(c.dev)

	p, prof, _, _, err := loadResolvedPlan(ctx, c)
	if err != nil {
		return err
	}
	cfg, err := autopilot.NewConfig(autopilot.Config{MaxLevel: autopilot.LevelReportOnly})
	if err != nil {
		return err
	}
	eng := autopilot.NewEngine(cfg, prof, nil, nil, "integration/", nil)
	levels, recs, err := eng.Report(p)
	if err != nil {
		return err
	}
	for i, level := range levels {
		fmt.Printf("level %d:\n", i)
		for _, name := range level {
			for _, rec := range recs {
				if rec.Name == name {
					fmt.Printf("  %-20s %-10s %s\n", rec.Name, rec.Eligibility, rec.Recommendation)
				}
			}
		}
	}
	return nil
}

func runDoctor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	c := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configureLogger(c.dev)

	var problems []string

	if _, err := exec.LookPath("git"); err != nil {
		problems = append(problems, "git binary not found on PATH")
	}
	if _, err := exec.LookPath("gh"); err != nil {
		problems = append(problems, "gh binary not found on PATH (needed for PR close/status operations)")
	}

	prof, env, err := resolveProfile(c)
	if err != nil {
		problems = append(problems, fmt.Sprintf("profile resolution failed: %v", err))
	} else {
		fmt.Printf("profile: %s (role=%s)\n", prof.Dir, prof.Role)
		if !prof.CanWrite() {
			problems = append(problems, fmt.Sprintf("profile %s has read-only role %q", prof.Dir, prof.Role))
		}
		if env.GitHubToken == "" {
			problems = append(problems, "GITHUB_TOKEN is not set; forge queries and PR mutations will fail")
		}
	}

	if len(problems) == 0 {
		fmt.Println("doctor: no problems found")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(os.Stderr, "doctor: %s\n", p)
	}
	return fmt.Errorf("%d problem(s) found", len(problems))
}

const defaultBootstrapProfileYAML = "role: local\nname: bootstrap\n"
const defaultBootstrapStackYAML = "version: 1\ntarget: main\nprs: []\n"

func runBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	c := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	configureLogger(c.dev)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	// If .smartergpt/ exists without .smartergpt.local/ already present,
	// resolving against it lands on the read-only "example" role; fail
	// fast with the same guidance profile.WriteProtectionError gives,
	// per spec.md's write-protected-bootstrap invariant.
	if _, err := os.Stat(filepath.Join(cwd, ".smartergpt")); err == nil {
		if _, err := os.Stat(filepath.Join(cwd, ".smartergpt.local")); os.IsNotExist(err) {
			return &profile.WriteProtectionError{Role: profile.RoleExample, Dir: filepath.Join(cwd, ".smartergpt")}
		}
	}

	target := c.profileDir
	if target == "" {
		target = filepath.Join(cwd, ".smartergpt.local")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create profile directory %s: %w", target, err)
	}

	for name, content := range map[string]string{
		"profile.yml": defaultBootstrapProfileYAML,
		"stack.yml":   defaultBootstrapStackYAML,
	} {
		path := filepath.Join(target, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	fmt.Printf("bootstrap: wrote writable profile at %s\n", target)
	return nil
}

func runAutopilot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("autopilot", flag.ExitOnError)
	c := bindCommonFlags(fs)
	workspace := fs.String("workspace", "", "git workspace to weave/merge in (default: current directory)")
	deliverablesRoot := fs.String("deliverables-root", "", "deliverables root (default: <profile>/deliverables)")
	maxLevel := fs.Int("max-level", autopilot.LevelReportOnly, "highest autopilot level to reach (0-4)")
	dryRun := fs.Bool("dry-run", false, "record effects without performing them")
	openPR := fs.Bool("open-pr", false, "validated against max-level (requires max-level >= 3); autopilot does not open a PR")
	closeSuperseded := fs.Bool("close-superseded", false, "close superseded PRs at L4 (requires max-level == 4)")
	commentTemplate := fs.String("comment-template", "", "override the L2 annotation comment template")
	durable := fs.Bool("durable", false, "drive the run through a Temporal workflow instead of in-process")
	worker := fs.Bool("worker", false, "run as a temporalflow worker instead of submitting one execution (implies --durable)")
	temporalHostPort := fs.String("temporal-host-port", "127.0.0.1:7233", "Temporal frontend address, used only with --durable/--worker")
	temporalTaskQueue := fs.String("temporal-task-queue", "lex-pr-autopilot", "Temporal task queue, used only with --durable/--worker")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := configureLogger(c.dev)

	p, prof, env, warnings, err := loadResolvedPlan(ctx, c)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("plan load warning", "warning", w)
	}

	cfg, err := autopilot.NewConfig(autopilot.Config{
		MaxLevel:        *maxLevel,
		DryRun:          *dryRun,
		OpenPR:          *openPR,
		CloseSuperseded: *closeSuperseded,
		CommentTemplate: *commentTemplate,
	})
	if err != nil {
		return err
	}

	ws := *workspace
	if ws == "" {
		if ws, err = os.Getwd(); err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
	}
	deliverables := *deliverablesRoot
	if deliverables == "" {
		deliverables = filepath.Join(prof.Dir, "deliverables")
	}

	var forgeClient autopilot.ForgeClient
	if *maxLevel >= autopilot.LevelAnnotate {
		if env.GitHubToken == "" {
			return fmt.Errorf("autopilot: max-level %d requires a forge client but GITHUB_TOKEN is unset", *maxLevel)
		}
		querier := buildForgeQuerier(prof.Dir, env.GitHubToken)
		if c, ok := querier.(autopilot.ForgeClient); ok {
			forgeClient = c
		}
	}

	var gatesEngine *gate.Engine
	if *maxLevel >= autopilot.LevelWeave {
		gatesEngine = gate.NewEngine(filepath.Join(prof.Dir, "runner", "gate-results"), p.EffectiveMaxWorkers(), logger)
	}

	branchPrefix := env.BranchPrefix
	if branchPrefix == "" {
		branchPrefix = "integration/"
	}
	ledger := &safety.Ledger{}
	eng := autopilot.NewEngine(cfg, prof, gatesEngine, forgeClient, branchPrefix, logger)
	eng.Ledger = ledger

	now := env.Now()

	if *worker {
		return temporalflow.StartWorker(*temporalHostPort, *temporalTaskQueue, eng, logger)
	}

	if *durable {
		return runDurable(ctx, p, ws, deliverables, branchPrefix, *maxLevel, *dryRun, *openPR, *closeSuperseded, *commentTemplate, now, *temporalHostPort, *temporalTaskQueue)
	}

	result, err := eng.Run(ctx, p, ws, deliverables, now)
	if err != nil {
		return err
	}
	if result.Aborted {
		return fmt.Errorf("autopilot aborted at level %d: %s", result.LevelReached, result.AbortReason)
	}
	return json.NewEncoder(os.Stdout).Encode(result)
}
