package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWheelMetrics(t *testing.T) {
	m := NewWheelMetrics("metrics-test")

	m.RecordReceived("$11")
	m.RecordReceived("$11")
	m.CommandWritten()
	m.MissedPollSteps(3)
	m.MissedPollSteps(0)
	m.SetConnected(true)

	if got := testutil.ToFloat64(FramesReceived.WithLabelValues("metrics-test", "$11")); got != 2 {
		t.Fatalf("records received: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(CommandsWritten.WithLabelValues("metrics-test")); got != 1 {
		t.Fatalf("commands written: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(MissedPollSteps.WithLabelValues("metrics-test")); got != 3 {
		t.Fatalf("missed poll steps: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(WheelConnected.WithLabelValues("metrics-test")); got != 1 {
		t.Fatalf("connected: got %v, want 1", got)
	}

	m.SetConnected(false)
	if got := testutil.ToFloat64(WheelConnected.WithLabelValues("metrics-test")); got != 0 {
		t.Fatalf("connected: got %v, want 0", got)
	}
}

func TestNilWheelMetrics(t *testing.T) {
	var m *WheelMetrics
	m.RecordReceived("$13")
	m.CommandWritten()
	m.TransportError("read")
	m.MissedPollSteps(1)
	m.QueueLength(4)
	m.SetConnected(true)
}
