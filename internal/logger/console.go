// Package logger provides logging implementations for weaver runs.
//
// Loggers write leveled, timestamped lines and render plan and weave
// summaries. Implementations are thread-safe and support console and file
// destinations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/weaver/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the full logging surface used by the CLI.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	LogPlanSummary(plan *models.BatchPlan)
	LogWeaveSummary(status *models.WeaveStatus)
}

// ConsoleLogger logs to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor honours NO_COLOR and non-TTY outputs
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// Tracef logs a trace-level message (most verbose).
func (cl *ConsoleLogger) Tracef(format string, args ...interface{}) {
	cl.logWithLevel("TRACE", fmt.Sprintf(format, args...))
}

// Debugf logs a debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs an error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogPlanSummary logs the planning outcome at INFO level.
// Format: "[HH:MM:SS] === Plan Summary ===" followed by counts and any findings.
func (cl *ConsoleLogger) LogPlanSummary(plan *models.BatchPlan) {
	if cl.writer == nil || plan == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.writer.Write([]byte(renderPlanSummary(timestamp(), plan, cl.colorOutput)))
}

// LogWeaveSummary logs the weaving outcome at INFO level.
func (cl *ConsoleLogger) LogWeaveSummary(status *models.WeaveStatus) {
	if cl.writer == nil || status == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.writer.Write([]byte(renderWeaveSummary(timestamp(), status, cl.colorOutput)))
}

func renderPlanSummary(ts string, plan *models.BatchPlan, useColor bool) string {
	var sb strings.Builder
	header := "=== Plan Summary ==="
	status := string(plan.Status)
	if useColor {
		header = color.New(color.Bold).Sprint(header)
		if plan.Status == models.PlanStatusPlanned {
			status = color.New(color.FgGreen).Sprint(status)
		} else {
			status = color.New(color.FgRed).Sprint(status)
		}
	}

	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)
	fmt.Fprintf(&sb, "[%s] Status: %s\n", ts, status)
	if plan.Reason != "" {
		fmt.Fprintf(&sb, "[%s] Reason: %s\n", ts, plan.Reason)
	}
	if plan.Status != models.PlanStatusPlanned {
		return sb.String()
	}
	s := plan.Summary
	fmt.Fprintf(&sb, "[%s] Tasks: %d  Batches: %d  Levels: %d  Intersections: %d\n",
		ts, s.TotalTasks, s.TotalBatches, s.TotalLevels, s.TotalIntersections)
	fmt.Fprintf(&sb, "[%s] Parallelization: %.1f%%  Estimated speedup: %.2fx\n",
		ts, s.ParallelizationFactor*100, s.EstimatedSpeedup)
	for _, finding := range plan.Findings {
		line := "Finding: " + finding
		if useColor {
			line = color.New(color.FgYellow).Sprint(line)
		}
		fmt.Fprintf(&sb, "[%s] %s\n", ts, line)
	}
	return sb.String()
}

func renderWeaveSummary(ts string, status *models.WeaveStatus, useColor bool) string {
	var sb strings.Builder
	header := "=== Weave Summary ==="
	completed := fmt.Sprintf("Completed: %d", len(status.Completed))
	failed := fmt.Sprintf("Failed: %d", len(status.Failed))
	if useColor {
		header = color.New(color.Bold).Sprint(header)
		completed = color.New(color.FgGreen).Sprint(completed)
		if len(status.Failed) > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
		}
	}

	fmt.Fprintf(&sb, "[%s] %s\n", ts, header)
	fmt.Fprintf(&sb, "[%s] Status: %s (%s)\n", ts, status.Status, status.Reason)
	fmt.Fprintf(&sb, "[%s] Intersections: %d total, %d ready\n", ts, status.TotalIntersections, status.ReadyIntersections)
	fmt.Fprintf(&sb, "[%s] %s  %s  Skipped: %d\n", ts, completed, failed, len(status.Skipped))
	fmt.Fprintf(&sb, "[%s] Conflicts: %d auto-merged, %d manual review\n", ts, status.AutoMerged, status.ManualReview)
	for _, msg := range status.ValidationErrors {
		fmt.Fprintf(&sb, "[%s]   - %s\n", ts, msg)
	}
	return sb.String()
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// NoOpLogger discards everything. Useful in tests.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Tracef(string, ...interface{})       {}
func (n *NoOpLogger) Debugf(string, ...interface{})       {}
func (n *NoOpLogger) Infof(string, ...interface{})        {}
func (n *NoOpLogger) Warnf(string, ...interface{})        {}
func (n *NoOpLogger) Errorf(string, ...interface{})       {}
func (n *NoOpLogger) LogPlanSummary(*models.BatchPlan)    {}
func (n *NoOpLogger) LogWeaveSummary(*models.WeaveStatus) {}
