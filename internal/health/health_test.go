package health

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTracker(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := New(reg)

	if _, ok := tr.Last(); ok {
		t.Fatal("expected no snapshot before the first cycle")
	}

	now := time.Now()
	tr.Record(CycleStatus{
		StartedAt:  now.Add(-2 * time.Second),
		FinishedAt: now,
		OK:         true,
		New:        3,
		Updated:    1,
		Delivered:  4,
		Failed:     1,
	})

	last, ok := tr.Last()
	if !ok || last.New != 3 {
		t.Fatalf("unexpected snapshot: %+v ok=%v", last, ok)
	}

	if got := testutil.ToFloat64(tr.cycles.WithLabelValues("ok")); got != 1 {
		t.Errorf("cycles ok counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(tr.events.WithLabelValues("new")); got != 3 {
		t.Errorf("new events counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(tr.deliveries.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed deliveries counter = %v, want 1", got)
	}

	tr.Record(CycleStatus{StartedAt: now, FinishedAt: now, OK: false, Error: "portal down"})
	if got := testutil.ToFloat64(tr.cycles.WithLabelValues("error")); got != 1 {
		t.Errorf("cycles error counter = %v, want 1", got)
	}
	last, _ = tr.Last()
	if last.Error != "portal down" {
		t.Errorf("expected last error to be retained, got %q", last.Error)
	}
}
