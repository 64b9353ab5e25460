package telemetry

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, m interface {
	Write(*dto.Metric) error
}) float64 {
	t.Helper()
	var metric dto.Metric
	if err := m.Write(&metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestNewRegistersCollectorsAndIncrements(t *testing.T) {
	m := New(nil)

	m.BatchAppends.Inc()
	m.BatchAppends.Inc()

	if got := counterValue(t, m.BatchAppends); got != 2 {
		t.Fatalf("BatchAppends = %v, want 2", got)
	}
}

func TestDispatchViolationsLabeled(t *testing.T) {
	m := New(nil)

	m.DispatchViolations.WithLabelValues("unknown_id").Inc()
	m.DispatchViolations.WithLabelValues("unknown_id").Inc()
	m.DispatchViolations.WithLabelValues("truncated_frame").Inc()

	if got := counterValue(t, m.DispatchViolations.WithLabelValues("unknown_id")); got != 2 {
		t.Fatalf("unknown_id = %v, want 2", got)
	}
	if got := counterValue(t, m.DispatchViolations.WithLabelValues("truncated_frame")); got != 1 {
		t.Fatalf("truncated_frame = %v, want 1", got)
	}
}

func TestStartSpanSafeOnNilMetrics(t *testing.T) {
	var m *Metrics
	ctx, span := m.StartSpan(context.Background(), "test")
	if ctx == nil || span == nil {
		t.Fatalf("StartSpan on a nil *Metrics returned a nil ctx or span")
	}
	span.End()
}

func TestStartSpanReturnsUsableSpan(t *testing.T) {
	m := New(nil)
	ctx, span := m.StartSpan(context.Background(), "test")
	if ctx == nil || span == nil {
		t.Fatalf("StartSpan returned a nil ctx or span")
	}
	span.End()
}
