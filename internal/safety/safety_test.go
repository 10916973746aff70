package safety

import (
	"testing"
	"time"
)

func TestEvaluate_AbortOnUnsafeActions(t *testing.T) {
	alerts, abort := Evaluate(time.Now(), Snapshot{
		Window:        time.Hour,
		TotalActions:  10,
		RetryActions:  1,
		FailedActions: 1,
		UnsafeActions: 2,
	}, Thresholds{
		MaxRetriesPerWindow: 3,
		MaxFailureRate:      0.5,
		MaxUnsafeActions:    0,
	})

	if !abort {
		t.Fatal("expected abort=true")
	}
	if len(alerts) == 0 {
		t.Fatal("expected at least one alert")
	}
}

func TestEvaluate_AbortOnRetryLoop(t *testing.T) {
	_, abort := Evaluate(time.Now(), Snapshot{
		TotalActions: 10,
		RetryActions: 5,
	}, Thresholds{MaxRetriesPerWindow: 3})

	if !abort {
		t.Fatal("expected abort=true for retry-loop breach")
	}
}

func TestEvaluate_WarningOnFailureRate(t *testing.T) {
	alerts, abort := Evaluate(time.Now(), Snapshot{
		Window:        time.Hour,
		TotalActions:  10,
		RetryActions:  1,
		FailedActions: 6,
		UnsafeActions: 0,
	}, Thresholds{
		MaxRetriesPerWindow: 3,
		MaxFailureRate:      0.5,
		MaxUnsafeActions:    0,
	})

	if abort {
		t.Fatal("expected abort=false for failure-rate warning only")
	}
	if len(alerts) == 0 || alerts[0].Level != "warning" {
		t.Fatalf("expected a warning alert, got %+v", alerts)
	}
}

func TestEvaluate_NoBreachesReturnsNoAlerts(t *testing.T) {
	alerts, abort := Evaluate(time.Now(), Snapshot{TotalActions: 10, FailedActions: 1}, Thresholds{
		MaxRetriesPerWindow: 3,
		MaxFailureRate:      0.5,
		MaxUnsafeActions:    1,
	})
	if abort {
		t.Fatal("expected abort=false")
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
}

func TestEvaluate_ZeroTotalActionsDoesNotDivideByZero(t *testing.T) {
	alerts, abort := Evaluate(time.Now(), Snapshot{}, Thresholds{MaxFailureRate: 0.1})
	if abort {
		t.Fatal("expected abort=false")
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts with zero actions, got %+v", alerts)
	}
}
