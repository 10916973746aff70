package gate

import (
	"testing"
	"time"
)

func TestBackoffDelay_ZeroRetriesIsZero(t *testing.T) {
	if d := backoffDelay(0, time.Second, time.Minute); d != 0 {
		t.Errorf("expected 0 delay for retries=0, got %v", d)
	}
}

func TestBackoffDelay_GrowsExponentially(t *testing.T) {
	base := 100 * time.Millisecond
	max := 10 * time.Second

	d1 := backoffDelay(1, base, max)
	d2 := backoffDelay(2, base, max)
	d3 := backoffDelay(3, base, max)

	if d1 < base || d1 > base+base/5 {
		t.Errorf("retries=1 delay out of expected range: %v", d1)
	}
	if d2 <= d1 {
		t.Errorf("expected delay to grow: d1=%v d2=%v", d1, d2)
	}
	if d3 <= d2 {
		t.Errorf("expected delay to grow: d2=%v d3=%v", d2, d3)
	}
}

func TestBackoffDelay_CapsAtMaxDelay(t *testing.T) {
	base := time.Second
	max := 2 * time.Second

	d := backoffDelay(10, base, max)
	if d > max+max/5 {
		t.Errorf("expected delay capped near maxDelay, got %v", d)
	}
}
