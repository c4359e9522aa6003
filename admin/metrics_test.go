package admin

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.DocumentsLive.Set(3)
	m.KitsSpawned.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var sawDocs, sawKits bool
	for _, f := range families {
		switch f.GetName() {
		case "cool_broker_documents_live":
			sawDocs = true
			if got := f.Metric[0].GetGauge().GetValue(); got != 3 {
				t.Fatalf("documents_live = %v, want 3", got)
			}
		case "cool_spawner_kits_spawned_total":
			sawKits = true
			if got := f.Metric[0].GetCounter().GetValue(); got != 1 {
				t.Fatalf("kits_spawned_total = %v, want 1", got)
			}
		}
	}
	if !sawDocs || !sawKits {
		t.Fatalf("expected both documents_live and kits_spawned_total to be registered, families=%v", names(families))
	}
}

func names(families []*dto.MetricFamily) []string {
	out := make([]string, len(families))
	for i, f := range families {
		out[i] = f.GetName()
	}
	return out
}
