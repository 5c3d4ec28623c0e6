package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/weaver/internal/audit"
	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/logger"
)

// runEnv is what every command needs: merged configuration, a logger and
// the audit log. close must be called when the command ends.
type runEnv struct {
	cfg   *config.Config
	log   logger.Logger
	audit *audit.Log

	fileLog *logger.FileLogger
}

// loadConfig merges the config file, WEAVER_* variables and flags, in
// that order of increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.ApplyEnv()

	changed := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	cfg.MergeWithFlags(changed("source-root"), changed("state-dir"), changed("log-level"), changed("health-url"))
	if dir := changed("log-dir"); dir != nil {
		cfg.LogDir = *dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newRunEnv loads configuration and opens the console and file loggers
// and the audit log.
func newRunEnv(cmd *cobra.Command, withAudit bool) (*runEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	env := &runEnv{cfg: cfg}

	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		console.Warnf("File logging disabled: %v", err)
		env.log = console
	} else {
		env.fileLog = fileLog
		env.log = logger.NewMultiLogger(console, fileLog)
	}

	if withAudit {
		log, err := audit.Open(cfg.Audit.Dir, cfg.Audit.SQLitePath, time.Now())
		if err != nil {
			env.close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		env.audit = log
		env.log.Debugf("Audit log: %s", log.Path())
	}
	return env, nil
}

func (e *runEnv) close() error {
	var errs []error
	if e.audit != nil {
		errs = append(errs, e.audit.Close())
	}
	if e.fileLog != nil {
		errs = append(errs, e.fileLog.Close())
	}
	return errors.Join(errs...)
}
