package profile

import (
	"os"
	"strings"
	"time"
)

// DefaultBranchPrefix is used when LEX_BRANCH_PREFIX is unset.
const DefaultBranchPrefix = "integration/"

// Env captures every process-wide environment read in one place,
// resolved once at startup (spec.md §9: "funnel through a single Env
// value captured at process start; pass explicitly to every
// component"). Tests construct an Env directly instead of mutating the
// real environment.
type Env struct {
	ProfileDirOverride string
	BranchPrefix       string
	AllowMutations     bool
	DeterministicTime  *time.Time
	GitHubToken        string
}

// FromEnviron reads LEX_PR_PROFILE_DIR, LEX_BRANCH_PREFIX,
// ALLOW_MUTATIONS, LEX_PR_DETERMINISTIC_TIME, and GITHUB_TOKEN from the
// process environment.
func FromEnviron() (*Env, error) {
	e := &Env{
		ProfileDirOverride: os.Getenv("LEX_PR_PROFILE_DIR"),
		BranchPrefix:       os.Getenv("LEX_BRANCH_PREFIX"),
		AllowMutations:     os.Getenv("ALLOW_MUTATIONS") == "true",
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
	}
	if e.BranchPrefix == "" {
		e.BranchPrefix = DefaultBranchPrefix
	}

	if raw := strings.TrimSpace(os.Getenv("LEX_PR_DETERMINISTIC_TIME")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &InvalidDeterministicTimeError{Raw: raw, Cause: err}
		}
		e.DeterministicTime = &t
	}

	return e, nil
}

// InvalidDeterministicTimeError is returned when LEX_PR_DETERMINISTIC_TIME
// is set but not a valid ISO-8601/RFC3339 timestamp.
type InvalidDeterministicTimeError struct {
	Raw   string
	Cause error
}

func (e *InvalidDeterministicTimeError) Error() string {
	return "invalid LEX_PR_DETERMINISTIC_TIME " + e.Raw + ": " + e.Cause.Error()
}

func (e *InvalidDeterministicTimeError) Unwrap() error { return e.Cause }

// Now returns e.DeterministicTime if set, else time.Now(), so callers
// that stamp output timestamps route through one place.
func (e *Env) Now() time.Time {
	if e.DeterministicTime != nil {
		return *e.DeterministicTime
	}
	return time.Now()
}
