package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by weaver.
const (
	EnvHome       = "WEAVER_HOME"
	EnvStateDir   = "WEAVER_STATE_DIR"
	EnvLogLevel   = "WEAVER_LOG_LEVEL"
	EnvHealthURL  = "WEAVER_HEALTH_URL"
	EnvSourceRoot = "WEAVER_SOURCE_ROOT"

	// EnvUnsafeSkipLiveness disables the liveness gate. Discouraged: planning
	// against a running system risks concurrent file mutation.
	EnvUnsafeSkipLiveness = "WEAVER_UNSAFE_SKIP_LIVENESS"
)

// LoadDotEnv loads a .env file from the working directory if present.
// A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays environment variables onto the configuration.
// Empty variables are ignored.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvHome)); v != "" {
		c.StateDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStateDir)); v != "" {
		c.StateDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHealthURL)); v != "" {
		c.Safety.HealthURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSourceRoot)); v != "" {
		c.SourceRoot = v
	}
}

// LivenessOverride reports whether the unsafe liveness override is set.
func LivenessOverride() bool {
	v := strings.TrimSpace(os.Getenv(EnvUnsafeSkipLiveness))
	if v == "" {
		return false
	}
	on, err := strconv.ParseBool(v)
	return err == nil && on
}
