// Package planner turns a task list into a batch plan: it builds the
// dependency graph, profiles risk, packs levels into batches and maps the
// intersections the weaver will later combine.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/weaver/internal/audit"
	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/filelock"
	"github.com/harrison/weaver/internal/logger"
	"github.com/harrison/weaver/internal/models"
)

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, runID string, kind audit.Kind, status, reason string, payload any) error
}

// Options carries the planner's optional collaborators.
type Options struct {
	Logger      Logger
	Prober      LivenessProber
	Maintenance Maintenance
	Audit       Recorder

	// LivenessOverride reports whether the liveness gate is switched off.
	// Defaults to config.LivenessOverride.
	LivenessOverride func() bool
}

// Planner sequences graph building, risk profiling, batch packing and
// intersection mapping behind the liveness gate and the planning lock.
type Planner struct {
	cfg         *config.Config
	logger      Logger
	prober      LivenessProber
	maintenance Maintenance
	audit       Recorder
	override    func() bool
	builder     *GraphBuilder
	optimizer   *Optimizer
	cache       *GraphCache
	now         func() time.Time
}

// New builds a planner. cfg must not be nil.
func New(cfg *config.Config, opts Options) (*Planner, error) {
	if cfg == nil {
		panic("planner: nil config")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Prober == nil {
		if cfg.Safety.HealthURL != "" {
			opts.Prober = NewHTTPProber(cfg.Safety.HealthURL, cfg.Safety.ProbeTimeout)
		} else {
			opts.Prober = staticProber{}
		}
	}
	if opts.Maintenance == nil {
		opts.Maintenance = NoopMaintenance{}
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLog()
	}
	if opts.LivenessOverride == nil {
		opts.LivenessOverride = config.LivenessOverride
	}

	cache, err := NewGraphCache(cfg.Planner.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create graph cache: %w", err)
	}

	return &Planner{
		cfg:         cfg,
		logger:      opts.Logger,
		prober:      opts.Prober,
		maintenance: opts.Maintenance,
		audit:       opts.Audit,
		override:    opts.LivenessOverride,
		builder:     NewGraphBuilder(cfg.SourceRoot, opts.Logger),
		optimizer: NewOptimizer(Policy{
			MaxBatchRisk:            cfg.Policy.MaxBatchRisk,
			MaxCollisionProbability: cfg.Policy.MaxCollisionProbability,
			MaxParallelBatches:      cfg.Policy.MaxParallelBatches,
		}),
		cache: cache,
		now:   time.Now,
	}, nil
}

// Cache exposes the graph cache shared by this planner's runs.
func (p *Planner) Cache() *GraphCache {
	return p.cache
}

// Plan runs one planning pass. The returned plan always carries a status and
// a reason. The error is non-nil only for structural failures (a
// *CycleError or invalid input), in which case the plan status is "error".
// Refused runs (disabled, blocked, locked) touch nothing.
func (p *Planner) Plan(ctx context.Context, tasks []models.Task) (*models.BatchPlan, error) {
	plan := &models.BatchPlan{
		CreatedAt:     p.now().UTC(),
		Batches:       []models.Batch{},
		Levels:        [][]string{},
		Intersections: []models.Intersection{},
	}

	if !p.cfg.Planner.Enabled {
		plan.Status = models.PlanStatusDisabled
		plan.Reason = "planner disabled by config"
		p.logger.Infof("Planning skipped: %s", plan.Reason)
		return plan, nil
	}

	if p.override() {
		p.logger.Warnf("Liveness gate disabled by %s; planning without checking for a live instance", config.EnvUnsafeSkipLiveness)
	} else if live, detail := p.prober.Probe(ctx); live {
		plan.Status = models.PlanStatusBlocked
		plan.Reason = "live instance detected: " + detail
		p.logger.Warnf("Planning blocked: %s", plan.Reason)
		return plan, nil
	} else {
		p.logger.Debugf("Liveness probe: %s", detail)
	}

	run := NewRunContext(ctx, p.cfg.PlanningLockPath(), p.cache)
	plan.RunID = run.RunID
	defer func() {
		if err := run.Close(p.maintenance); err != nil {
			p.logger.Errorf("Planning run %s cleanup: %v", run.RunID, err)
		}
	}()

	if err := run.Acquire(p.cfg.Planner.LockTimeout); err != nil {
		if errors.Is(err, filelock.ErrLockTimeout) {
			plan.Status = models.PlanStatusLocked
			plan.Reason = fmt.Sprintf("another planning run holds %s", p.cfg.PlanningLockPath())
			p.logger.Warnf("Planning refused: %s", plan.Reason)
			return plan, nil
		}
		return p.fail(ctx, plan, fmt.Errorf("acquire planning lock: %w", err))
	}

	if err := run.PauseMaintenance(p.maintenance); err != nil {
		return p.fail(ctx, plan, err)
	}

	p.logger.Infof("Planning run %s: %d tasks", run.RunID, len(tasks))
	graph, err := p.builder.Build(run.Context(), tasks, run.Cache)
	if err != nil {
		return p.fail(ctx, plan, err)
	}
	p.logger.Debugf("Dependency graph: %d tasks, %d edges", len(graph.Tasks), graph.EdgeCount())

	profile := BuildRiskProfile(graph)
	if risky := HighRiskPairs(profile, p.cfg.Policy.MaxCollisionProbability); len(risky) > 0 {
		p.logger.Debugf("%d task pairs exceed collision probability %.2f and will not share a batch",
			len(risky), p.cfg.Policy.MaxCollisionProbability)
	}

	opt, err := p.optimizer.Optimize(graph, profile)
	if err != nil {
		return p.fail(ctx, plan, err)
	}

	plan.Batches = opt.Batches
	plan.Levels = opt.Levels
	plan.Findings = opt.Findings
	plan.Intersections = MapIntersections(graph, opt.Batches)
	plan.Summary = opt.Summary
	plan.Summary.TotalIntersections = len(plan.Intersections)
	plan.Status = models.PlanStatusPlanned
	plan.Reason = fmt.Sprintf("%d tasks in %d batches across %d levels", plan.Summary.TotalTasks, plan.Summary.TotalBatches, plan.Summary.TotalLevels)
	for _, f := range plan.Findings {
		p.logger.Warnf("Plan finding: %s", f)
	}

	if err := p.audit.Record(ctx, plan.RunID, audit.KindPlan, string(plan.Status), plan.Reason, plan); err != nil {
		p.logger.Errorf("Failed to append plan audit entry: %v", err)
	}
	return plan, nil
}

func (p *Planner) fail(ctx context.Context, plan *models.BatchPlan, err error) (*models.BatchPlan, error) {
	plan.Status = models.PlanStatusError
	plan.Reason = err.Error()
	p.logger.Errorf("Planning failed: %v", err)
	if auditErr := p.audit.Record(ctx, plan.RunID, audit.KindPlan, string(plan.Status), plan.Reason, nil); auditErr != nil {
		p.logger.Errorf("Failed to append plan audit entry: %v", auditErr)
	}
	return plan, err
}
