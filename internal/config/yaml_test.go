package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile_AllFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "full_config.yml")

	configContent := `
name: production
hosts:
  - zk1.example.com:2181
  - zk2.example.com:2181
  - secure://zk3.example.com:2281
policy: nearest_hostname
fallback_session_min: 15s
fallback_session_max: 45s
session_timeout: 20s
connect_timeout: 5s
metrics_port: 9999
log_level: debug
log_format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	// Verify all fields
	if cfg.Name != "production" {
		t.Errorf("expected name 'production', got %s", cfg.Name)
	}
	if len(cfg.Hosts) != 3 {
		t.Errorf("expected 3 hosts, got %d", len(cfg.Hosts))
	}
	if cfg.Hosts[2] != "secure://zk3.example.com:2281" {
		t.Errorf("unexpected third host: %s", cfg.Hosts[2])
	}
	if cfg.Policy != "nearest_hostname" {
		t.Errorf("expected policy 'nearest_hostname', got %s", cfg.Policy)
	}
	if cfg.FallbackSessionMin != 15*time.Second {
		t.Errorf("expected fallback session min 15s, got %v", cfg.FallbackSessionMin)
	}
	if cfg.FallbackSessionMax != 45*time.Second {
		t.Errorf("expected fallback session max 45s, got %v", cfg.FallbackSessionMax)
	}
	if cfg.SessionTimeout != 20*time.Second {
		t.Errorf("expected session timeout 20s, got %v", cfg.SessionTimeout)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("expected connect timeout 5s, got %v", cfg.ConnectTimeout)
	}
	if cfg.MetricsPort != 9999 {
		t.Errorf("expected metrics port 9999, got %d", cfg.MetricsPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("expected log format 'text', got %s", cfg.LogFormat)
	}
}

func TestLoadFromFile_MinimalValid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal.yml")

	configContent := `
hosts:
  - zk1:2181
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	// Unset fields keep their defaults.
	if cfg.Name != "default" {
		t.Errorf("expected default name, got %s", cfg.Name)
	}
	if cfg.Policy != "random" {
		t.Errorf("expected default policy, got %s", cfg.Policy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("minimal config should validate: %v", err)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.yml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromFile_Malformed(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "broken.yml")

	if err := os.WriteFile(configPath, []byte("hosts: [unbalanced"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
