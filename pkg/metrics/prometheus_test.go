package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[mf.GetName()] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordSpin("api", 17)
	r.RecordSpin("feed", 0)
	r.RecordOutcome("color", "hit")
	r.RecordAlert("win_streak")
	r.RecordArchived("clickhouse", 3)
	r.RecordError("snapshot_save")
	r.RecordLatency("observe", 0.002)
	r.SetStrategies(2, 1, 1)

	got := gather(t, reg)
	want := map[string]float64{
		"spintrack_spins_observed_total":       2,
		"spintrack_last_number":                0,
		"spintrack_strategy_outcomes_total":    1,
		"spintrack_alerts_fired_total":         1,
		"spintrack_spins_archived_total":       3,
		"spintrack_errors_total":               1,
		"spintrack_operation_duration_seconds": 1,
		"spintrack_strategies":                 4,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s = %v, want %v (all: %v)", name, got[name], v, got)
		}
	}
}

func TestNewIsShared(t *testing.T) {
	if New() != New() {
		t.Fatalf("New must return the shared recorder")
	}
}
