package logging

import "time"

// Config configures a Router: how big the queue is, the minimum severity
// that reaches any sink, and how often queue drops are reported.
// NewRouter takes its sinks from its own argument and does not read
// EnabledSinks, JSON or Console; those describe sink choices for the code
// that builds that sink list.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	DropWarnInterval time.Duration
	JSON             JSONConfig
	Console          ConsoleConfig
}

// JSONConfig configures the newline-delimited JSON sink.
type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

// ConsoleConfig configures the console sink.
type ConsoleConfig struct {
	UseColor bool
}

// DefaultConfig mirrors the teacher's logging.DefaultConfig: console-only,
// info severity, a modest bounded queue.
func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}
