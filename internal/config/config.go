package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyConfig holds the batching thresholds. They are policy, not
// calibrated constants, so every one of them can be overridden.
type PolicyConfig struct {
	// MaxBatchRisk caps the cumulative risk of a single batch
	MaxBatchRisk float64 `yaml:"max_batch_risk"`

	// MaxCollisionProbability caps the collision probability of any pair inside a batch
	MaxCollisionProbability float64 `yaml:"max_collision_probability"`

	// MaxParallelBatches caps the batches of one topological level; tasks past
	// the cap are force-placed and recorded as findings
	MaxParallelBatches int `yaml:"max_parallel_batches"`
}

// PlannerConfig configures the strategic planner
type PlannerConfig struct {
	// Enabled turns planning on; disabled runs return a "disabled" status
	Enabled bool `yaml:"enabled"`

	// LockTimeout bounds the wait for the global planning lock
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// CacheSize is the number of memoized dependency graphs kept per planner
	CacheSize int `yaml:"cache_size"`
}

// SafetyConfig configures the liveness gate
type SafetyConfig struct {
	// HealthURL is probed before planning; empty disables the probe
	HealthURL string `yaml:"health_url"`

	// ProbeTimeout bounds the probe; a timeout counts as "not live"
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// ExecutorConfig configures the intersection executor
type ExecutorConfig struct {
	// LockRetries is the number of attempts to take a per-file lock
	LockRetries int `yaml:"lock_retries"`

	// LockBackoff is the base delay, doubled after every failed attempt
	LockBackoff time.Duration `yaml:"lock_backoff"`

	// CommandTimeout bounds each glue validation command
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// GlueConfig configures glue code generation
type GlueConfig struct {
	// Enabled turns generation on; when off every unit is emitted as "disabled"
	Enabled bool `yaml:"enabled"`

	// ValidationCommand is run against each generated unit; {file} is replaced by its shell-quoted path
	ValidationCommand string `yaml:"validation_command"`
}

// ValidatorConfig configures the five-layer integration check
type ValidatorConfig struct {
	Syntax     bool `yaml:"syntax"`
	TypeCheck  bool `yaml:"type_check"`
	Imports    bool `yaml:"imports"`
	Signatures bool `yaml:"signatures"`
	Tests      bool `yaml:"tests"`

	// Python is the interpreter used for syntax, import and test layers
	Python string `yaml:"python"`

	// TypeChecker is the type checking executable
	TypeChecker string `yaml:"type_checker"`

	// CommandTimeout bounds syntax, type and import commands
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// TestTimeout bounds each discovered test file
	TestTimeout time.Duration `yaml:"test_timeout"`

	// MaxOutput truncates captured command output (bytes)
	MaxOutput int `yaml:"max_output"`
}

// WeaverConfig configures the integration weaver
type WeaverConfig struct {
	// Enabled turns weaving on; disabled runs return a "disabled" status
	Enabled bool `yaml:"enabled"`

	// PredictionConcurrency bounds concurrent interface predictions
	PredictionConcurrency int `yaml:"prediction_concurrency"`
}

// AuditConfig configures the append-only audit trail
type AuditConfig struct {
	// Dir holds one JSONL file per run
	Dir string `yaml:"dir"`

	// SQLitePath mirrors every entry into an append-only table; empty disables the mirror
	SQLitePath string `yaml:"sqlite_path"`
}

// Config represents weaver configuration options
type Config struct {
	// SourceRoot is the shared source tree that tasks modify
	SourceRoot string `yaml:"source_root"`

	// StateDir holds locks, backups, logs and the audit trail
	StateDir string `yaml:"state_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	Policy    PolicyConfig    `yaml:"policy"`
	Planner   PlannerConfig   `yaml:"planner"`
	Safety    SafetyConfig    `yaml:"safety"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Glue      GlueConfig      `yaml:"glue"`
	Validator ValidatorConfig `yaml:"validator"`
	Weaver    WeaverConfig    `yaml:"weaver"`
	Audit     AuditConfig     `yaml:"audit"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		SourceRoot: ".",
		StateDir:   ".weaver",
		LogLevel:   "info",
		LogDir:     ".weaver/logs",
		Policy: PolicyConfig{
			MaxBatchRisk:            0.005,
			MaxCollisionProbability: 0.10,
			MaxParallelBatches:      5,
		},
		Planner: PlannerConfig{
			Enabled:     true,
			LockTimeout: 5 * time.Second,
			CacheSize:   64,
		},
		Safety: SafetyConfig{
			HealthURL:    "",
			ProbeTimeout: 2 * time.Second,
		},
		Executor: ExecutorConfig{
			LockRetries:    5,
			LockBackoff:    50 * time.Millisecond,
			CommandTimeout: 30 * time.Second,
		},
		Glue: GlueConfig{
			Enabled:           true,
			ValidationCommand: "python3 -m py_compile {file}",
		},
		Validator: ValidatorConfig{
			Syntax:         true,
			TypeCheck:      true,
			Imports:        true,
			Signatures:     true,
			Tests:          true,
			Python:         "python3",
			TypeChecker:    "mypy",
			CommandTimeout: 30 * time.Second,
			TestTimeout:    60 * time.Second,
			MaxOutput:      4096,
		},
		Weaver: WeaverConfig{
			Enabled:               true,
			PredictionConcurrency: 4,
		},
		Audit: AuditConfig{
			Dir:        ".weaver/audit",
			SQLitePath: "",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys missing from the file keep their default values because the
	// decoder only assigns fields present in the document.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .weaver/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".weaver", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(sourceRoot *string, stateDir *string, logLevel *string, healthURL *string) {
	if sourceRoot != nil {
		c.SourceRoot = *sourceRoot
	}
	if stateDir != nil {
		c.StateDir = *stateDir
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if healthURL != nil {
		c.Safety.HealthURL = *healthURL
	}
}

// PlanningLockPath returns the path of the global planning lock file
func (c *Config) PlanningLockPath() string {
	return filepath.Join(c.StateDir, "planning.lock")
}

// LockDir returns the directory holding per-file write locks
func (c *Config) LockDir() string {
	return filepath.Join(c.StateDir, "locks")
}

// BackupDir returns the root directory for intersection backups
func (c *Config) BackupDir() string {
	return filepath.Join(c.StateDir, "backups")
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.SourceRoot == "" {
		return fmt.Errorf("source_root cannot be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Policy.MaxBatchRisk < 0 {
		return fmt.Errorf("policy.max_batch_risk must be >= 0, got %v", c.Policy.MaxBatchRisk)
	}
	if c.Policy.MaxCollisionProbability < 0 || c.Policy.MaxCollisionProbability > 1 {
		return fmt.Errorf("policy.max_collision_probability must be in [0,1], got %v", c.Policy.MaxCollisionProbability)
	}
	if c.Policy.MaxParallelBatches <= 0 {
		return fmt.Errorf("policy.max_parallel_batches must be > 0, got %d", c.Policy.MaxParallelBatches)
	}

	if c.Planner.LockTimeout < 0 {
		return fmt.Errorf("planner.lock_timeout must be >= 0, got %v", c.Planner.LockTimeout)
	}
	if c.Planner.CacheSize <= 0 {
		return fmt.Errorf("planner.cache_size must be > 0, got %d", c.Planner.CacheSize)
	}
	if c.Safety.ProbeTimeout <= 0 {
		return fmt.Errorf("safety.probe_timeout must be > 0, got %v", c.Safety.ProbeTimeout)
	}

	if c.Executor.LockRetries <= 0 {
		return fmt.Errorf("executor.lock_retries must be > 0, got %d", c.Executor.LockRetries)
	}
	if c.Executor.LockBackoff < 0 {
		return fmt.Errorf("executor.lock_backoff must be >= 0, got %v", c.Executor.LockBackoff)
	}
	if c.Executor.CommandTimeout <= 0 {
		return fmt.Errorf("executor.command_timeout must be > 0, got %v", c.Executor.CommandTimeout)
	}

	if c.Validator.CommandTimeout <= 0 || c.Validator.TestTimeout <= 0 {
		return fmt.Errorf("validator timeouts must be > 0")
	}
	if c.Validator.MaxOutput <= 0 {
		return fmt.Errorf("validator.max_output must be > 0, got %d", c.Validator.MaxOutput)
	}

	if c.Weaver.PredictionConcurrency <= 0 {
		return fmt.Errorf("weaver.prediction_concurrency must be > 0, got %d", c.Weaver.PredictionConcurrency)
	}

	if c.Audit.Dir == "" {
		return fmt.Errorf("audit.dir cannot be empty")
	}

	return nil
}
