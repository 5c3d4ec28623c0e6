// Package validation runs the five-layer integration check over the files a
// weaving run modified: syntax, type checking, import resolution, signature
// compatibility and unit tests.
package validation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/executor"
	"github.com/harrison/weaver/internal/logger"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

// Layer names, in execution order.
const (
	LayerSyntax     = "syntax"
	LayerTypeCheck  = "type_check"
	LayerImports    = "imports"
	LayerSignatures = "signatures"
	LayerTests      = "tests"
)

// Logger is the subset of the weaver logger used here.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Options carries the validator's optional collaborators.
type Options struct {
	Runner   executor.CommandRunner
	Logger   Logger
	LookPath func(file string) (string, error) // defaults to exec.LookPath
}

// Validator checks a set of modified files.
type Validator struct {
	root     string
	cfg      config.ValidatorConfig
	runner   executor.CommandRunner
	logger   Logger
	lookPath func(string) (string, error)
}

// New creates a validator for the source tree at root.
func New(root string, cfg config.ValidatorConfig, opts Options) *Validator {
	if opts.Runner == nil {
		opts.Runner = executor.NewShellCommandRunner(root)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	return &Validator{root: root, cfg: cfg, runner: opts.Runner, logger: opts.Logger, lookPath: opts.LookPath}
}

// source is one modified module loaded for validation.
type source struct {
	file    string
	data    []byte
	summary *models.SourceSummary
}

type layer struct {
	name     string
	blocking bool
	enabled  bool
	run      func(v *Validator, ctx context.Context, srcs []*source) models.LayerResult
}

func (v *Validator) layers() []layer {
	return []layer{
		{LayerSyntax, true, v.cfg.Syntax, (*Validator).checkSyntax},
		{LayerTypeCheck, false, v.cfg.TypeCheck, (*Validator).checkTypes},
		{LayerImports, true, v.cfg.Imports, (*Validator).checkImports},
		{LayerSignatures, true, v.cfg.Signatures, (*Validator).checkSignatures},
		{LayerTests, false, v.cfg.Tests, (*Validator).runTests},
	}
}

// Validate runs every layer over files (paths relative to the source root).
// The result fails only when a blocking layer fails; advisory failures
// become warnings.
func (v *Validator) Validate(ctx context.Context, files []string) *models.ValidationResult {
	result := &models.ValidationResult{Layers: []models.LayerResult{}}
	srcs := v.load(ctx, files)
	if len(srcs) == 0 {
		result.Status = models.ValidationSkipped
		result.Reason = "no modified Python files"
		for _, l := range v.layers() {
			result.Layers = append(result.Layers, models.LayerResult{Name: l.name, Status: models.LayerSkipped, Blocking: l.blocking, Reason: result.Reason})
		}
		return result
	}

	var failedLayers []string
	for _, l := range v.layers() {
		var lr models.LayerResult
		if !l.enabled {
			lr = models.LayerResult{Status: models.LayerSkipped, Reason: "disabled by config"}
		} else {
			lr = l.run(v, ctx, srcs)
		}
		lr.Name = l.name
		lr.Blocking = l.blocking
		result.Layers = append(result.Layers, lr)
		v.logger.Debugf("Validation layer %s: %s %s", l.name, lr.Status, lr.Reason)

		if lr.Status != models.LayerFailed {
			continue
		}
		if l.blocking {
			failedLayers = append(failedLayers, l.name)
			result.BlockingIssues = append(result.BlockingIssues, prefixed(l.name, lr.Issues)...)
		} else {
			result.Warnings = append(result.Warnings, prefixed(l.name, lr.Issues)...)
		}
	}
	if imports := result.Layer(LayerImports); imports != nil && imports.Status == models.LayerPassed {
		result.Warnings = append(result.Warnings, prefixed(LayerImports, imports.Issues)...)
	}

	if len(failedLayers) > 0 {
		result.Status = models.ValidationFailed
		result.Reason = "blocking layers failed: " + strings.Join(failedLayers, ", ")
		return result
	}
	result.Status = models.ValidationPassed
	result.Reason = fmt.Sprintf("%d files passed with %d warnings", len(srcs), len(result.Warnings))
	return result
}

// load reads and parses the modified Python files, skipping others.
func (v *Validator) load(ctx context.Context, files []string) []*source {
	seen := make(map[string]bool)
	var srcs []*source
	for _, f := range files {
		f = filepath.ToSlash(filepath.Clean(f))
		if seen[f] || !pysource.IsPython(f) {
			continue
		}
		seen[f] = true
		data, err := os.ReadFile(v.path(f))
		if err != nil {
			v.logger.Warnf("Validation: skipping %s: %v", f, err)
			continue
		}
		summary, err := pysource.Parse(ctx, f, data)
		if err != nil {
			v.logger.Warnf("Validation: cannot parse %s: %v", f, err)
			summary = &models.SourceSummary{File: f, Confidence: models.ConfidenceLow}
		}
		srcs = append(srcs, &source{file: f, data: data, summary: summary})
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].file < srcs[j].file })
	return srcs
}

func (v *Validator) path(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}

func (v *Validator) available(bin string) bool {
	if bin == "" {
		return false
	}
	_, err := v.lookPath(bin)
	return err == nil
}

func (v *Validator) run(ctx context.Context, command string, timeout time.Duration) (models.CommandResult, error) {
	return executor.RunCommand(ctx, v.runner, command, timeout, v.cfg.MaxOutput)
}

func prefixed(name string, issues []string) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, name+": "+issue)
	}
	return out
}

func quoteAll(files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = executor.ShellQuote(f)
	}
	return strings.Join(quoted, " ")
}

// failureDetail returns the final line of a failed command's output, where
// Python reports the error itself, or the process error when there was none.
func failureDetail(res models.CommandResult) string {
	out := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(res.Output), "... (truncated)"))
	if out == "" {
		return res.Error
	}
	lines := strings.Split(out, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
