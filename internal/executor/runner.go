package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/weaver/internal/models"
)

// CommandRunner abstracts shell command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, command string) (output string, err error)
}

// ShellCommandRunner executes commands via the system shell.
type ShellCommandRunner struct {
	WorkDir string // Working directory for commands (empty = current dir)
}

// NewShellCommandRunner creates a CommandRunner that executes real shell commands.
func NewShellCommandRunner(workDir string) *ShellCommandRunner {
	return &ShellCommandRunner{WorkDir: workDir}
}

// Run executes a command via sh -c and returns combined stdout/stderr.
func (r *ShellCommandRunner) Run(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}
	cmd.WaitDelay = time.Second

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// RunCommand runs command with a hard timeout and captures a bounded result.
// A timeout is reported as a failure wrapping ErrCommandTimeout.
func RunCommand(ctx context.Context, runner CommandRunner, command string, timeout time.Duration, maxOutput int) (models.CommandResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := runner.Run(runCtx, command)
	result := models.CommandResult{
		Command:  command,
		Output:   Truncate(output, maxOutput),
		Passed:   err == nil,
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.TimedOut = true
		err = fmt.Errorf("%w after %v: %q", ErrCommandTimeout, timeout, command)
	}
	result.Error = err.Error()
	return result, err
}

// Truncate cuts s to at most max bytes, marking the cut. max <= 0 keeps s.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}

// ShellQuote quotes s as a single sh word.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
