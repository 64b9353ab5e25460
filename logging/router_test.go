package logging

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"bitwire/server/logging/sinks"
	"bitwire/server/telemetry"
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

func waitForEvents(t *testing.T, mem *sinks.Memory, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if events := mem.Events(); len(events) >= n {
			return events
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(mem.Events()))
	return nil
}

func TestRouterForwardsToSink(t *testing.T) {
	mem := sinks.NewMemory()
	router := NewRouter(nil, Config{BufferSize: 16}, []NamedSink{{Name: "memory", Sink: mem}}, nil)
	defer router.Close(context.Background())

	router.Publish(context.Background(), Event{Type: EventConnect, Severity: SeverityInfo, Connection: 1})

	events := waitForEvents(t, mem, 1)
	if events[0].Type != EventConnect {
		t.Fatalf("Type = %v, want %v", events[0].Type, EventConnect)
	}
	if events[0].Connection != 1 {
		t.Fatalf("Connection = %d, want 1", events[0].Connection)
	}
}

func TestRouterDropsBelowMinimumSeverity(t *testing.T) {
	mem := sinks.NewMemory()
	router := NewRouter(nil, Config{BufferSize: 16, MinimumSeverity: SeverityWarn}, []NamedSink{{Name: "memory", Sink: mem}}, nil)
	defer router.Close(context.Background())

	router.Publish(context.Background(), Event{Type: EventConnect, Severity: SeverityInfo})
	router.Publish(context.Background(), Event{Type: EventBroken, Severity: SeverityWarn})

	events := waitForEvents(t, mem, 1)
	time.Sleep(20 * time.Millisecond)
	events = mem.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want exactly 1 (info below minimum should be dropped)", len(events))
	}
	if events[0].Type != EventBroken {
		t.Fatalf("Type = %v, want %v", events[0].Type, EventBroken)
	}
}

func TestRouterPublishAfterCloseIsNoop(t *testing.T) {
	mem := sinks.NewMemory()
	router := NewRouter(nil, Config{BufferSize: 16}, []NamedSink{{Name: "memory", Sink: mem}}, nil)
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	router.Publish(context.Background(), Event{Type: EventConnect})
	time.Sleep(10 * time.Millisecond)
	if len(mem.Events()) != 0 {
		t.Fatalf("expected no events published after Close")
	}
}

func TestRouterStatsCountsEvents(t *testing.T) {
	mem := sinks.NewMemory()
	router := NewRouter(nil, Config{BufferSize: 16}, []NamedSink{{Name: "memory", Sink: mem}}, nil)
	defer router.Close(context.Background())

	router.Publish(context.Background(), Event{Type: EventConnect, Severity: SeverityInfo})
	waitForEvents(t, mem, 1)

	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("EventsTotal = %d, want 1", stats.EventsTotal)
	}
}

func TestNopPublisherDiscardsEvents(t *testing.T) {
	NopPublisher().Publish(context.Background(), Event{Type: EventConnect})
}

func TestHandleDropIncrementsMetrics(t *testing.T) {
	metrics := telemetry.New(nil)
	mem := sinks.NewMemory()
	router := NewRouter(nil, Config{BufferSize: 16}, []NamedSink{{Name: "memory", Sink: mem}}, metrics)
	defer router.Close(context.Background())

	router.handleDrop(Event{Type: EventConnect, Connection: 9})
	router.handleDrop(Event{Type: EventConnect, Connection: 9})

	if got := counterValue(t, metrics.LogEventsDropped); got != 2 {
		t.Fatalf("LogEventsDropped = %v, want 2", got)
	}
	if stats := router.Stats(); stats.DroppedTotal != 2 {
		t.Fatalf("DroppedTotal = %d, want 2", stats.DroppedTotal)
	}
}
