package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("found"))

	ObserveRun("found", "max", 7, 3*time.Millisecond)

	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("found")); got != before+1 {
		t.Errorf("expected runs_total{found}=%v, got %v", before+1, got)
	}
	if n := testutil.CollectAndCount(RunSteps); n == 0 {
		t.Error("expected run_steps series")
	}
}

func TestSetComponentUp(t *testing.T) {
	SetComponentUp("mqtt", true)
	if got := testutil.ToFloat64(ComponentUp.WithLabelValues("mqtt")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	SetComponentUp("mqtt", false)
	if got := testutil.ToFloat64(ComponentUp.WithLabelValues("mqtt")); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}
