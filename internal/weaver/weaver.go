// Package weaver combines completed batch outputs into one validated tree:
// it predicts interfaces, generates glue, resolves shared-file conflicts and
// applies every ready intersection before running the integration check.
package weaver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/harrison/weaver/internal/audit"
	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/conflict"
	"github.com/harrison/weaver/internal/executor"
	"github.com/harrison/weaver/internal/glue"
	"github.com/harrison/weaver/internal/logger"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/planner"
	"github.com/harrison/weaver/internal/predict"
	"github.com/harrison/weaver/internal/pysource"
	"github.com/harrison/weaver/internal/validation"
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

// Options carries the weaver's optional collaborators.
type Options struct {
	Logger Logger
	Runner executor.CommandRunner
	Audit  Recorder

	// LookPath finds validation tools; defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Weaver runs weaving passes over a plan and its batch results.
type Weaver struct {
	cfg       *config.Config
	logger    Logger
	audit     Recorder
	predictor *predict.Predictor
	generator *glue.Generator
	executor  *executor.Executor
	validator *validation.Validator
}

// New creates a weaver. cfg must not be nil.
func New(cfg *config.Config, opts Options) *Weaver {
	if cfg == nil {
		panic("weaver: nil config")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Runner == nil {
		opts.Runner = executor.NewShellCommandRunner(cfg.SourceRoot)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLog()
	}
	return &Weaver{
		cfg:       cfg,
		logger:    opts.Logger,
		audit:     opts.Audit,
		predictor: predict.NewPredictor(cfg.SourceRoot, nil, opts.Logger),
		generator: glue.NewGenerator(cfg.Glue),
		executor:  executor.New(cfg, executor.Options{Logger: opts.Logger, Runner: opts.Runner, Audit: opts.Audit}),
		validator: validation.New(cfg.SourceRoot, cfg.Validator, validation.Options{
			Runner:   opts.Runner,
			Logger:   opts.Logger,
			LookPath: opts.LookPath,
		}),
	}
}

// Weave applies every ready intersection of plan and validates the result.
// Per-intersection failures are isolated and reported in the status; the
// error is non-nil only when the run itself could not proceed.
func (w *Weaver) Weave(ctx context.Context, plan *models.BatchPlan, results []models.BatchResult) (*models.WeaveStatus, error) {
	if plan == nil {
		return nil, errors.New("weave: nil plan")
	}
	status := &models.WeaveStatus{
		RunID:     uuid.NewString(),
		Completed: []string{},
		Failed:    []string{},
	}
	if !w.cfg.Weaver.Enabled {
		status.Status = models.WeaveDisabled
		status.Reason = "weaver disabled by config"
		w.logger.Infof("Weaving skipped: %s", status.Reason)
		return status, nil
	}

	byBatch := make(map[string]*models.BatchResult, len(results))
	for i := range results {
		byBatch[results[i].BatchID] = &results[i]
	}

	ixs := append([]models.Intersection{}, plan.Intersections...)
	planner.SortIntersections(ixs)
	status.TotalIntersections = len(ixs)

	var ready []models.Intersection
	for _, ix := range ixs {
		if isReady(ix, byBatch) {
			ready = append(ready, ix)
			continue
		}
		// the executor reports and audits the missing prerequisites
		res := w.executor.Execute(ctx, status.RunID, executor.Job{Intersection: ix}, byBatch)
		status.Skipped = append(status.Skipped, ix.ID)
		status.Executions = append(status.Executions, res)
	}
	status.ReadyIntersections = len(ready)

	if len(ready) == 0 {
		status.Status = models.WeaveNothing
		status.Reason = fmt.Sprintf("no intersections ready: %d waiting on incomplete batches", len(status.Skipped))
		w.record(ctx, status)
		return status, nil
	}

	preds, err := w.predictor.PredictAll(ctx, ready, byBatch, w.cfg.Weaver.PredictionConcurrency)
	if err != nil {
		status.Status = models.WeaveFailed
		status.Reason = err.Error()
		w.record(ctx, status)
		return status, err
	}

	merges := newFileMerges(plan, ready, byBatch)
	modified := make(map[string]bool)
	var modifiedOrder []string
	for i, ix := range ready {
		if err := ctx.Err(); err != nil {
			status.Status = models.WeaveFailed
			status.Reason = "cancelled: " + err.Error()
			w.record(ctx, status)
			return status, err
		}
		pred := preds[i]
		status.Interfaces = append(status.Interfaces, *pred)

		job := w.job(plan, ix, pred, merges, status)
		res := w.executor.Execute(ctx, status.RunID, job, byBatch)
		status.Executions = append(status.Executions, res)
		switch res.Status {
		case models.ExecutionCompleted:
			status.Completed = append(status.Completed, ix.ID)
		case models.ExecutionSkipped:
			status.Skipped = append(status.Skipped, ix.ID)
		default:
			status.Failed = append(status.Failed, ix.ID)
		}
		for _, f := range res.FilesModified {
			if !modified[f] {
				modified[f] = true
				modifiedOrder = append(modifiedOrder, f)
			}
		}
	}

	if len(modifiedOrder) > 0 {
		status.Validation = w.validator.Validate(ctx, modifiedOrder)
		status.ValidationErrors = status.Validation.BlockingIssues
		for _, warn := range status.Validation.Warnings {
			w.logger.Warnf("Validation: %s", warn)
		}
	}

	w.compile(status)
	w.record(ctx, status)
	return status, nil
}

// job builds the executor job for one ready intersection.
func (w *Weaver) job(plan *models.BatchPlan, ix models.Intersection, pred *models.PredictedInterface, merges *fileMerges, status *models.WeaveStatus) executor.Job {
	job := executor.Job{Intersection: ix}

	if ix.Type == models.IntersectionFileMerge {
		res, first := merges.take(ix.Location)
		job.Resolution = res
		if first {
			for _, r := range res.Resolutions {
				if r.Strategy.Applicable() {
					if r.Strategy != models.StrategyTrivial {
						status.AutoMerged++
					}
				} else {
					status.ManualReview++
				}
			}
		}
		if !res.Applicable {
			w.logger.Warnf("Intersection %s: %s needs manual review", ix.ID, ix.Location)
			return job
		}
	}

	req := glue.Request{Intersection: ix, Interface: pred, TargetFile: targetFile(plan, ix)}
	job.Glue = append(job.Glue, w.generator.Generate(req))
	if ix.Type == models.IntersectionImportChain && len(pred.TypeHints) > 0 {
		req.Pattern = models.PatternTypeConverter
		job.Glue = append(job.Glue, w.generator.Generate(req))
	}
	return job
}

// compile sets the overall status and reason.
func (w *Weaver) compile(status *models.WeaveStatus) {
	validationFailed := status.Validation != nil && status.Validation.Status == models.ValidationFailed
	switch {
	case len(status.Completed) == 0 && len(status.Failed) > 0:
		status.Status = models.WeaveFailed
	case len(status.Failed) > 0 || validationFailed:
		status.Status = models.WeavePartial
	default:
		status.Status = models.WeaveCompleted
	}

	parts := []string{fmt.Sprintf("%d of %d intersections woven", len(status.Completed), status.TotalIntersections)}
	if n := len(status.Failed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	if n := len(status.Skipped); n > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", n))
	}
	if status.ManualReview > 0 {
		parts = append(parts, fmt.Sprintf("%d conflicts need manual review", status.ManualReview))
	}
	if status.Validation != nil {
		parts = append(parts, "validation "+string(status.Validation.Status))
	}
	status.Reason = strings.Join(parts, "; ")
}

func (w *Weaver) record(ctx context.Context, status *models.WeaveStatus) {
	w.logger.Infof("Weave run %s: %s (%s)", status.RunID, status.Status, status.Reason)
	if err := w.audit.Record(ctx, status.RunID, audit.KindWeave, string(status.Status), status.Reason, status); err != nil {
		w.logger.Errorf("Failed to append weave audit entry: %v", err)
	}
}

// fileMerges holds one resolution per shared location, folded over every
// batch of the ready file_merge intersections at that location.
type fileMerges struct {
	byLocation map[string]*models.FileResolution
	counted    map[string]bool
}

func newFileMerges(plan *models.BatchPlan, ready []models.Intersection, results map[string]*models.BatchResult) *fileMerges {
	order := make(map[string]int, len(plan.Batches))
	for i, b := range plan.Batches {
		order[b.ID] = i
	}

	batches := make(map[string][]string)
	for _, ix := range ready {
		if ix.Type != models.IntersectionFileMerge {
			continue
		}
		for _, id := range []string{ix.SourceBatch, ix.TargetBatch} {
			if !slices.Contains(batches[ix.Location], id) {
				batches[ix.Location] = append(batches[ix.Location], id)
			}
		}
	}

	m := &fileMerges{byLocation: make(map[string]*models.FileResolution), counted: make(map[string]bool)}
	for loc, ids := range batches {
		sort.SliceStable(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })
		sides := make([]*models.BatchResult, len(ids))
		for i, id := range ids {
			sides[i] = results[id]
		}
		m.byLocation[loc] = conflict.ResolveResults(loc, sides...)
	}
	return m
}

// take returns the resolution for loc and whether this is its first use.
func (m *fileMerges) take(loc string) (*models.FileResolution, bool) {
	first := !m.counted[loc]
	m.counted[loc] = true
	return m.byLocation[loc], first
}

func isReady(ix models.Intersection, results map[string]*models.BatchResult) bool {
	for _, id := range ix.RequiredBatches() {
		if !results[id].IsCompleted() {
			return false
		}
	}
	return true
}

// targetFile picks where consumer-side glue goes: the target batch's first
// module other than the intersection location.
func targetFile(plan *models.BatchPlan, ix models.Intersection) string {
	if ix.Type == models.IntersectionFileMerge {
		return ix.Location
	}
	if b := plan.Batch(ix.TargetBatch); b != nil {
		for _, f := range b.Files {
			if f != ix.Location && pysource.IsPython(f) && !pysource.IsInit(f) {
				return f
			}
		}
	}
	return ix.Location
}
