package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"zero tick rate", ServerConfig{TickRate: 0, BatchInterval: time.Millisecond, ConnectionLimit: 1, MTU: 5, SendBufferSize: 1}},
		{"zero batch interval", ServerConfig{TickRate: 1, BatchInterval: 0, ConnectionLimit: 1, MTU: 5, SendBufferSize: 1}},
		{"zero connection limit", ServerConfig{TickRate: 1, BatchInterval: time.Millisecond, ConnectionLimit: 0, MTU: 5, SendBufferSize: 1}},
		{"undersized mtu", ServerConfig{TickRate: 1, BatchInterval: time.Millisecond, ConnectionLimit: 1, MTU: 4, SendBufferSize: 1}},
		{"zero send buffer", ServerConfig{TickRate: 1, BatchInterval: time.Millisecond, ConnectionLimit: 1, MTU: 5, SendBufferSize: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatalf("Validate() = nil, want an error for %+v", tt.cfg)
			}
		})
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	contents := "tick_rate: 30\nmtu: 512\nobservability:\n  admin_addr: \":9091\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	if cfg.TickRate != 30 {
		t.Fatalf("TickRate = %d, want 30", cfg.TickRate)
	}
	if cfg.MTU != 512 {
		t.Fatalf("MTU = %d, want 512", cfg.MTU)
	}
	if cfg.Observability.AdminAddr != ":9091" {
		t.Fatalf("AdminAddr = %q, want :9091", cfg.Observability.AdminAddr)
	}
	// Untouched fields keep their default.
	if cfg.ConnectionLimit != DefaultConfig().ConnectionLimit {
		t.Fatalf("ConnectionLimit = %d, want default %d", cfg.ConnectionLimit, DefaultConfig().ConnectionLimit)
	}
}

func TestLoadYAMLRejectsInvalidOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("tick_rate: -1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadYAML(path); err == nil {
		t.Fatalf("LoadYAML with invalid tick_rate = nil error, want one")
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("LoadYAML with missing file = nil error, want one")
	}
}
