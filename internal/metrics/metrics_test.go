package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "run_import", true, 120*time.Millisecond)
	rec.Observe(ctx, "run_import", true, 80*time.Millisecond)
	rec.Observe(ctx, "run_import", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["run_import"]; got != 205 {
		t.Fatalf("durations = %v, want 205", got)
	}
	if got := snap.Results["run_import"]["success"]; got != 2 {
		t.Fatalf("success count = %d, want 2", got)
	}
	if got := snap.Results["run_import"]["error"]; got != 1 {
		t.Fatalf("error count = %d, want 1", got)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("unexpected operations recorded: %v", snap.Results)
	}
}

func TestExpvarRecorderUniqueNames(t *testing.T) {
	a := NewExpvarRecorder("")
	b := NewExpvarRecorder("")
	if a.Name() == b.Name() {
		t.Fatalf("generated names collide: %q", a.Name())
	}
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	ctx := context.Background()
	rec.Observe(ctx, "run_import", true, 50*time.Millisecond)
	rec.Observe(ctx, "run_import", false, 10*time.Millisecond)

	success := testutil.ToFloat64(rec.results.WithLabelValues("run_import", "success"))
	if success != 1 {
		t.Fatalf("success counter = %v, want 1", success)
	}
	failure := testutil.ToFloat64(rec.results.WithLabelValues("run_import", "error"))
	if failure != 1 {
		t.Fatalf("error counter = %v, want 1", failure)
	}

	// Registering the same collectors twice must fail loudly.
	if _, err := NewPrometheusRecorder(reg); err == nil {
		t.Fatal("duplicate registration should error")
	}
}
