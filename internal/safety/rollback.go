package safety

import (
	"fmt"
	"sync"

	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

// RollbackPoint is one recorded pre-operation tip an L3 merge-weave run
// can be unwound to. weave.Weave already records a RollbackAt per
// Result; Ledger accumulates those across a run's operations in order
// so a caller can walk backward from the most recent one.
type RollbackPoint struct {
	Item       string
	RollbackAt string
}

// Ledger accumulates RollbackPoints for one autopilot run's L3 phase.
// Safe for concurrent use since weave.Weave's per-level results can be
// recorded from multiple call sites as levels complete.
type Ledger struct {
	mu     sync.Mutex
	points []RollbackPoint
}

// Record appends one weave result's rollback point, skipping entries
// with no recorded tip (items that never reached a weave operation).
func (l *Ledger) Record(result weave.Result) {
	if result.RollbackAt == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = append(l.points, RollbackPoint{Item: result.Item, RollbackAt: result.RollbackAt})
}

// Points returns a copy of every recorded rollback point, oldest first.
func (l *Ledger) Points() []RollbackPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RollbackPoint, len(l.points))
	copy(out, l.points)
	return out
}

// RollbackTo unwinds workspace back to the tip recorded for item,
// discarding every operation after it. It errors if item was never
// recorded.
func (l *Ledger) RollbackTo(workspace, item string) error {
	l.mu.Lock()
	var target *RollbackPoint
	for i := range l.points {
		if l.points[i].Item == item {
			target = &l.points[i]
			break
		}
	}
	l.mu.Unlock()

	if target == nil {
		return fmt.Errorf("safety: no rollback point recorded for item %q", item)
	}
	return weave.Rollback(workspace, weave.Result{Item: target.Item, RollbackAt: target.RollbackAt})
}
