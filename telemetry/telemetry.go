// Package telemetry wraps a prometheus.Registry and an OpenTelemetry
// tracer behind small helper types, mirroring the teacher's own
// abstraction-over-a-concrete-backend pattern in
// internal/telemetry/interfaces.go, but backed by the real libraries
// named in the domain stack instead of hand-rolled counters.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Metrics bundles every Prometheus collector the core exercises. All
// fields are safe to use even when metrics were never registered with a
// real registry (New always returns usable collectors).
type Metrics struct {
	BatchAppends       prometheus.Counter
	BatchFlushes       prometheus.Counter
	BytesSent          prometheus.Counter
	BrokenSends        prometheus.Counter
	DispatchViolations *prometheus.CounterVec
	AdmissionRejects   prometheus.Counter
	Connections        prometheus.Gauge
	LogEventsDropped   prometheus.Counter
	Tracer             trace.Tracer
}

// New builds a Metrics bundle and registers its collectors on registry.
// If registry is nil, a fresh private registry is used so callers who
// don't care about exposition can still call every counter method safely.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		BatchAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitwire_batch_appends_total",
			Help: "Messages appended to a per-connection batch.",
		}),
		BatchFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitwire_batch_flushes_total",
			Help: "Batches flushed to the transport.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitwire_bytes_sent_total",
			Help: "Bytes handed to the transport across all flushes.",
		}),
		BrokenSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitwire_broken_sends_total",
			Help: "Transport sends that failed and marked a connection broken.",
		}),
		DispatchViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bitwire_dispatch_violations_total",
			Help: "Protocol violations that disconnected a connection, by reason.",
		}, []string{"reason"}),
		AdmissionRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitwire_admission_rejects_total",
			Help: "Incoming connections rejected at admission control.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bitwire_connections",
			Help: "Currently live connections.",
		}),
		LogEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitwire_log_events_dropped_total",
			Help: "Structured log events dropped because the router's queue was full.",
		}),
		Tracer: otel.Tracer("bitwire/server"),
	}
	registry.MustRegister(
		m.BatchAppends, m.BatchFlushes, m.BytesSent, m.BrokenSends,
		m.DispatchViolations, m.AdmissionRejects, m.Connections, m.LogEventsDropped,
	)
	return m
}

// StartSpan is a small convenience wrapper so callers never need to import
// otel/trace directly just to open a span.
func (m *Metrics) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if m == nil || m.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.Tracer.Start(ctx, name)
}
