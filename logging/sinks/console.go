// Package sinks provides the concrete logging.Sink implementations the
// server wires by default: console, newline-delimited JSON, and an
// in-memory sink for tests. Adapted from the teacher's
// logging/sinks/{console,json,memory}.go.
package sinks

import (
	"context"
	"io"
	"log"

	"bitwire/server/logging"
)

// Console writes one human-readable line per event.
type Console struct {
	logger *log.Logger
}

// NewConsole builds a Console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{logger: log.New(w, "", log.LstdFlags)}
}

func (s *Console) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	if event.Reason != "" {
		s.logger.Printf("[%s] connection=%d severity=%s reason=%s", event.Type, event.Connection, event.Severity, event.Reason)
		return nil
	}
	s.logger.Printf("[%s] connection=%d severity=%s", event.Type, event.Connection, event.Severity)
	return nil
}

func (s *Console) Close(context.Context) error { return nil }
