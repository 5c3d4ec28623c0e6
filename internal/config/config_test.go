package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Policy.MaxBatchRisk != 0.005 {
		t.Errorf("Policy.MaxBatchRisk = %v, want 0.005", cfg.Policy.MaxBatchRisk)
	}
	if cfg.Policy.MaxCollisionProbability != 0.10 {
		t.Errorf("Policy.MaxCollisionProbability = %v, want 0.10", cfg.Policy.MaxCollisionProbability)
	}
	if cfg.Policy.MaxParallelBatches != 5 {
		t.Errorf("Policy.MaxParallelBatches = %d, want 5", cfg.Policy.MaxParallelBatches)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Executor.LockRetries != 5 {
		t.Errorf("Executor.LockRetries = %d, want 5", cfg.Executor.LockRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `log_level: debug
source_root: /src
policy:
  max_batch_risk: 0.01
  max_parallel_batches: 8
planner:
  lock_timeout: 30s
executor:
  lock_backoff: 10ms
glue:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.SourceRoot != "/src" {
		t.Errorf("SourceRoot = %q, want /src", cfg.SourceRoot)
	}
	if cfg.Policy.MaxBatchRisk != 0.01 {
		t.Errorf("Policy.MaxBatchRisk = %v, want 0.01", cfg.Policy.MaxBatchRisk)
	}
	// Untouched keys inside a provided section keep defaults
	if cfg.Policy.MaxCollisionProbability != 0.10 {
		t.Errorf("Policy.MaxCollisionProbability = %v, want default 0.10", cfg.Policy.MaxCollisionProbability)
	}
	if cfg.Policy.MaxParallelBatches != 8 {
		t.Errorf("Policy.MaxParallelBatches = %d, want 8", cfg.Policy.MaxParallelBatches)
	}
	if cfg.Planner.LockTimeout != 30*time.Second {
		t.Errorf("Planner.LockTimeout = %v, want 30s", cfg.Planner.LockTimeout)
	}
	if cfg.Executor.LockBackoff != 10*time.Millisecond {
		t.Errorf("Executor.LockBackoff = %v, want 10ms", cfg.Executor.LockBackoff)
	}
	if cfg.Glue.Enabled {
		t.Error("Glue.Enabled = true, want false")
	}
	if !cfg.Planner.Enabled {
		t.Error("Planner.Enabled should keep its default")
	}
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() should not error on missing file, got: %v", err)
	}
	if cfg.StateDir != ".weaver" {
		t.Errorf("StateDir = %q, want default", cfg.StateDir)
	}
}

// TestLoadConfigMalformed tests that bad YAML is reported
func TestLoadConfigMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("policy: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("LoadConfig() should fail on malformed YAML")
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".weaver"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".weaver", "config.yaml"), []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFromDir(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "negative risk", mutate: func(c *Config) { c.Policy.MaxBatchRisk = -1 }, wantErr: true},
		{name: "collision above one", mutate: func(c *Config) { c.Policy.MaxCollisionProbability = 1.5 }, wantErr: true},
		{name: "zero batches", mutate: func(c *Config) { c.Policy.MaxParallelBatches = 0 }, wantErr: true},
		{name: "zero lock retries", mutate: func(c *Config) { c.Executor.LockRetries = 0 }, wantErr: true},
		{name: "empty audit dir", mutate: func(c *Config) { c.Audit.Dir = "" }, wantErr: true},
		{name: "zero probe timeout", mutate: func(c *Config) { c.Safety.ProbeTimeout = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	root := "/work"
	level := "debug"
	cfg.MergeWithFlags(&root, nil, &level, nil)

	if cfg.SourceRoot != "/work" {
		t.Errorf("SourceRoot = %q, want /work", cfg.SourceRoot)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.StateDir != ".weaver" {
		t.Errorf("nil flag should not override StateDir, got %q", cfg.StateDir)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvStateDir, "/tmp/state")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvHealthURL, "http://localhost:8080/health")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.StateDir != "/tmp/state" {
		t.Errorf("StateDir = %q, want /tmp/state", cfg.StateDir)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Safety.HealthURL != "http://localhost:8080/health" {
		t.Errorf("Safety.HealthURL = %q", cfg.Safety.HealthURL)
	}
}

func TestLivenessOverride(t *testing.T) {
	t.Setenv(EnvUnsafeSkipLiveness, "")
	if LivenessOverride() {
		t.Error("override should be off when unset")
	}
	t.Setenv(EnvUnsafeSkipLiveness, "true")
	if !LivenessOverride() {
		t.Error("override should be on for \"true\"")
	}
	t.Setenv(EnvUnsafeSkipLiveness, "nope")
	if LivenessOverride() {
		t.Error("override should be off for unparsable values")
	}
}
