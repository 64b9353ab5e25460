// Package config defines the server's typed, default-seeded configuration
// object, mirroring the teacher's DefaultConfig()-plus-struct pattern in
// logging/config.go and internal/world/config.go, loaded from YAML with
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the top-level, YAML-loadable configuration for a
// bitwire server: tick rate, batch timing, admission limits, and buffer
// sizing. Every field has a sane default from DefaultConfig so a caller
// can start from a zero-value overlay of just the fields they care about.
type ServerConfig struct {
	// TickRate is how often the server drives its cooperative loop, in Hz.
	TickRate int `yaml:"tick_rate"`
	// BatchInterval bounds outbound latency for a non-empty batch.
	BatchInterval time.Duration `yaml:"batch_interval"`
	// ConnectionLimit is the maximum number of simultaneously admitted
	// connections; transport_connected beyond this is rejected.
	ConnectionLimit int `yaml:"connection_limit"`
	// MTU is the transport's maximum packet size, used to size every
	// per-(connection,channel) batch buffer.
	MTU int `yaml:"mtu"`
	// SendBufferSize sizes the dispatcher's single reusable outbound
	// buffer; it must exceed 1 byte plus the largest message payload.
	SendBufferSize int `yaml:"send_buffer_size"`

	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig toggles the ambient telemetry/logging surface
// without touching protocol behavior.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	AdminAddr      string `yaml:"admin_addr"`
}

// DefaultConfig returns the configuration spec.md §4.3/§5 assumes when a
// deployment doesn't override anything: 60Hz tick, 10ms batch interval,
// 1024 connections, a 1200-byte MTU (typical UDP-safe payload), and a
// send buffer sized for the MTU plus slack for a single oversized message.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		TickRate:        60,
		BatchInterval:   10 * time.Millisecond,
		ConnectionLimit: 1024,
		MTU:             1200,
		SendBufferSize:  1200 + 256,
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			TracingEnabled: false,
			AdminAddr:      ":9090",
		},
	}
}

// LoadYAML reads path and overlays it onto DefaultConfig, so a config file
// only needs to mention the fields it wants to change.
func LoadYAML(path string) (ServerConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configuration that would violate a core invariant
// before it ever reaches the batcher or dispatcher.
func (c ServerConfig) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("config: tick_rate must be positive")
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("config: batch_interval must be positive")
	}
	if c.ConnectionLimit <= 0 {
		return fmt.Errorf("config: connection_limit must be positive")
	}
	if c.MTU < 5 {
		return fmt.Errorf("config: mtu must be at least 5 bytes (spec.md §5 word-flush slack)")
	}
	if c.SendBufferSize < 1 {
		return fmt.Errorf("config: send_buffer_size must be at least 1 byte")
	}
	return nil
}
