// Package safety implements the autopilot safety framework: dry-run
// conversion of side-effecting operations to no-ops, rollback-point
// bookkeeping for L3 merge-weave, and circuit-breaker-style safety
// alerts that abort an autopilot run when it trips its own thresholds.
// Write-protection lives in internal/profile, since it is a property of
// the resolved profile rather than of a running autopilot level.
package safety

import (
	"fmt"
	"time"
)

// Thresholds bounds how much retrying, failing, and unsafe activity an
// autopilot run may generate before it trips the circuit breaker.
type Thresholds struct {
	MaxRetriesPerWindow int
	MaxFailureRate      float64
	MaxUnsafeActions    int
}

// Snapshot is a compact count of what happened during a run's current
// window, evaluated against Thresholds.
type Snapshot struct {
	Window        time.Duration
	TotalActions  int
	RetryActions  int
	FailedActions int
	UnsafeActions int
}

// Alert describes one threshold breach and its severity.
type Alert struct {
	Level       string // "critical" or "warning"
	Signal      string
	Reason      string
	TriggeredAt time.Time
}

// Evaluate checks snapshot against thresholds and reports every
// breached signal plus whether the run should abort. Unsafe-action and
// retry-loop breaches are critical and always abort; failure-rate
// breaches are a warning and do not abort on their own.
func Evaluate(now time.Time, snapshot Snapshot, thresholds Thresholds) ([]Alert, bool) {
	alerts := make([]Alert, 0, 3)
	abort := false

	if snapshot.UnsafeActions > thresholds.MaxUnsafeActions {
		alerts = append(alerts, Alert{
			Level:       "critical",
			Signal:      "unsafe_actions",
			Reason:      fmt.Sprintf("unsafe actions exceeded threshold (%d > %d)", snapshot.UnsafeActions, thresholds.MaxUnsafeActions),
			TriggeredAt: now,
		})
		abort = true
	}

	if snapshot.RetryActions > thresholds.MaxRetriesPerWindow {
		alerts = append(alerts, Alert{
			Level:       "critical",
			Signal:      "retry_loop",
			Reason:      fmt.Sprintf("retry actions exceeded threshold (%d > %d)", snapshot.RetryActions, thresholds.MaxRetriesPerWindow),
			TriggeredAt: now,
		})
		abort = true
	}

	failureRate := 0.0
	if snapshot.TotalActions > 0 {
		failureRate = float64(snapshot.FailedActions) / float64(snapshot.TotalActions)
	}
	if failureRate > thresholds.MaxFailureRate {
		alerts = append(alerts, Alert{
			Level:       "warning",
			Signal:      "failure_rate",
			Reason:      fmt.Sprintf("failure rate exceeded threshold (%.2f > %.2f)", failureRate, thresholds.MaxFailureRate),
			TriggeredAt: now,
		})
	}

	return alerts, abort
}
