package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilReceiverIsSafe(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveDuration("processing", time.Second)
	m.IncSuccess("processing")
	m.IncFailure("processing")
	m.IncStage("ingest", "duplicate")
}

func TestRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveDuration("dispatch", 250*time.Millisecond)
	m.IncSuccess("dispatch")
	m.IncStage("publish", "published")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) < 3 {
		t.Fatalf("expected at least 3 metric families, got %d", len(families))
	}
}
