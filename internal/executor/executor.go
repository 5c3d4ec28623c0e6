// Package executor applies one intersection to the shared source tree:
// backup, conflict resolution, glue injection under per-file locks and
// validation, with a byte-for-byte rollback when anything fails.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrison/weaver/internal/audit"
	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/filelock"
	"github.com/harrison/weaver/internal/logger"
	"github.com/harrison/weaver/internal/models"
)

// Logger is the subset of the weaver logger used here.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, runID string, kind audit.Kind, status, reason string, payload any) error
}

// Job is everything needed to apply one intersection.
type Job struct {
	Intersection models.Intersection
	Glue         []models.GlueCode
	Resolution   *models.FileResolution // file_merge only
}

// Options carries the executor's optional collaborators.
type Options struct {
	Logger Logger
	Runner CommandRunner
	Audit  Recorder
}

// Executor applies intersections one at a time.
type Executor struct {
	root           string
	backupDir      string
	lockDir        string
	lockRetries    int
	lockBackoff    time.Duration
	commandTimeout time.Duration
	maxOutput      int

	logger Logger
	runner CommandRunner
	audit  Recorder
}

// New creates an executor. cfg must not be nil.
func New(cfg *config.Config, opts Options) *Executor {
	if cfg == nil {
		panic("executor: nil config")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Runner == nil {
		opts.Runner = NewShellCommandRunner(cfg.SourceRoot)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLog()
	}
	return &Executor{
		root:           cfg.SourceRoot,
		backupDir:      cfg.BackupDir(),
		lockDir:        cfg.LockDir(),
		lockRetries:    cfg.Executor.LockRetries,
		lockBackoff:    cfg.Executor.LockBackoff,
		commandTimeout: cfg.Executor.CommandTimeout,
		maxOutput:      cfg.Validator.MaxOutput,
		logger:         opts.Logger,
		runner:         opts.Runner,
		audit:          opts.Audit,
	}
}

// Execute applies job and reports the outcome. Failures never leave partial
// writes behind: every touched file is restored from backup. Every outcome
// is appended to the audit log.
func (e *Executor) Execute(ctx context.Context, runID string, job Job, results map[string]*models.BatchResult) models.ExecutionResult {
	ix := job.Intersection
	res := models.ExecutionResult{IntersectionID: ix.ID}

	if err := checkDependencies(ix, results); err != nil {
		res.Status = models.ExecutionSkipped
		res.Reason = err.Error()
		e.record(ctx, runID, &res)
		return res
	}

	err := e.apply(ctx, runID, job, &res)
	if err != nil {
		res.Status = models.ExecutionFailed
		res.Error = err.Error()
		if res.Reason == "" {
			res.Reason = err.Error()
		}
		e.logger.Warnf("Intersection %s failed: %v", ix.ID, err)
	} else {
		res.Status = models.ExecutionCompleted
		res.Reason = fmt.Sprintf("%d files updated", len(res.FilesModified))
		e.logger.Infof("Intersection %s applied: %s", ix.ID, strings.Join(res.FilesModified, ", "))
	}
	e.record(ctx, runID, &res)
	return res
}

func (e *Executor) record(ctx context.Context, runID string, res *models.ExecutionResult) {
	if err := e.audit.Record(ctx, runID, audit.KindIntersection, string(res.Status), res.Reason, res); err != nil {
		e.logger.Errorf("Failed to append intersection audit entry: %v", err)
	}
}

func (e *Executor) apply(ctx context.Context, runID string, job Job, res *models.ExecutionResult) (err error) {
	ix := job.Intersection
	if r := job.Resolution; r != nil && !r.Applicable {
		res.Reason = fmt.Sprintf("%s for %s (%s)", ErrManualReview, r.File, r.Strategy())
		return NewIntersectionError(ix.ID, PhaseResolve, r.File, ErrManualReview)
	}

	files := touchedFiles(job)
	if len(files) == 0 {
		res.Log = append(res.Log, "nothing to apply")
		return nil
	}

	locks, err := e.lockAll(ctx, ix.ID, files)
	defer unlockAll(locks)
	if err != nil {
		return err
	}

	backup := NewBackup(e.root, filepath.Join(e.backupDir, runID, ix.ID))
	defer func() {
		if err == nil {
			if dErr := backup.Discard(); dErr != nil {
				e.logger.Warnf("Intersection %s: %v", ix.ID, dErr)
			}
			return
		}
		if rErr := backup.Restore(); rErr != nil {
			e.logger.Errorf("Intersection %s: rollback incomplete: %v", ix.ID, rErr)
			err = errors.Join(err, rErr)
			return
		}
		res.RolledBack = true
		res.FilesModified = nil
		res.Log = append(res.Log, "rolled back "+strings.Join(backup.Files(), ", "))
	}()

	content := make(map[string]string, len(files))
	for _, f := range files {
		if err := backup.Save(f); err != nil {
			return NewIntersectionError(ix.ID, PhaseBackup, f, err)
		}
		data, err := os.ReadFile(e.path(f))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return NewIntersectionError(ix.ID, PhaseBackup, f, err)
		}
		content[f] = string(data)
	}
	original := make(map[string]string, len(content))
	for f, c := range content {
		original[f] = c
	}

	if r := job.Resolution; r != nil {
		content[r.File] = r.MergedContent
		res.Log = append(res.Log, fmt.Sprintf("resolved %s (%s, %d conflicts)", r.File, r.Strategy(), len(r.Resolutions)))
	}
	for _, g := range job.Glue {
		if g.Empty() {
			continue
		}
		next, err := Inject(ctx, g.TargetLocation, content[g.TargetLocation], g)
		if err != nil {
			return NewIntersectionError(ix.ID, PhaseInject, g.TargetLocation, err)
		}
		content[g.TargetLocation] = next
		res.Log = append(res.Log, fmt.Sprintf("injected %s glue into %s (%s)", g.Pattern, g.TargetLocation, g.InsertionStrategy))
	}

	for _, f := range files {
		if content[f] == original[f] {
			continue
		}
		if err := filelock.AtomicWrite(e.path(f), []byte(content[f])); err != nil {
			return NewIntersectionError(ix.ID, PhaseWrite, f, err)
		}
		res.FilesModified = append(res.FilesModified, f)
	}

	for _, g := range job.Glue {
		if g.Empty() || g.ValidationCommand == "" {
			continue
		}
		result, err := RunCommand(ctx, e.runner, g.ValidationCommand, e.commandTimeout, e.maxOutput)
		res.Validation = &result
		if err != nil {
			res.Reason = fmt.Sprintf("validation of %s failed", g.TargetLocation)
			return NewIntersectionError(ix.ID, PhaseValidate, g.TargetLocation, fmt.Errorf("%w: %w", ErrValidationFailed, err))
		}
	}
	return nil
}

// lockAll takes the per-file lock of every file in sorted order. The locks
// taken so far are returned even on failure so the caller can release them.
func (e *Executor) lockAll(ctx context.Context, id string, files []string) ([]*filelock.FileLock, error) {
	var locks []*filelock.FileLock
	for _, f := range files {
		lock := filelock.NewFileLock(filelock.LockPathFor(e.lockDir, e.path(f)))
		if err := lock.TryLockWithBackoff(ctx, e.lockRetries, e.lockBackoff); err != nil {
			return locks, NewIntersectionError(id, PhaseWrite, f, err)
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func unlockAll(locks []*filelock.FileLock) {
	for i := len(locks) - 1; i >= 0; i-- {
		_ = locks[i].Unlock()
	}
}

func (e *Executor) path(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// checkDependencies verifies every batch the intersection needs completed.
func checkDependencies(ix models.Intersection, results map[string]*models.BatchResult) error {
	var missing []string
	for _, id := range ix.RequiredBatches() {
		r := results[id]
		switch {
		case r == nil:
			missing = append(missing, id+" (no result)")
		case !r.IsCompleted():
			missing = append(missing, fmt.Sprintf("%s (%s)", id, r.Status))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrDependenciesIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// touchedFiles lists every file the job may write, sorted.
func touchedFiles(job Job) []string {
	set := make(map[string]bool)
	if job.Resolution != nil && job.Resolution.File != "" {
		set[job.Resolution.File] = true
	}
	for _, g := range job.Glue {
		if !g.Empty() && g.TargetLocation != "" {
			set[g.TargetLocation] = true
		}
	}
	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
