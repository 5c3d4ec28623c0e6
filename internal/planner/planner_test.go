package planner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/weaver/internal/audit"
	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/filelock"
	"github.com/harrison/weaver/internal/models"
)

type recordingMaintenance struct {
	paused, resumed int
	pauseErr        error
}

func (m *recordingMaintenance) Pause(context.Context) error {
	m.paused++
	return m.pauseErr
}

func (m *recordingMaintenance) Resume(context.Context) error {
	m.resumed++
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	root := t.TempDir()
	cfg.SourceRoot = filepath.Join(root, "src")
	cfg.StateDir = filepath.Join(root, "state")
	cfg.Audit.Dir = filepath.Join(root, "state", "audit")
	cfg.Planner.LockTimeout = 100 * time.Millisecond
	require.NoError(t, os.MkdirAll(cfg.SourceRoot, 0755))
	return cfg
}

func noOverride() bool { return false }

func scenarioTasks() []models.Task {
	return []models.Task{
		{ID: "task1", Files: []string{"alpha/one.py"}},
		{ID: "task2", Files: []string{"beta/two.py"}},
		{ID: "task3", Files: []string{"gamma/three.py"}, Dependencies: []string{"task1"}},
	}
}

// snapshot lists every file under dir with its modification time.
func snapshot(t *testing.T, dir string) map[string]time.Time {
	t.Helper()
	files := make(map[string]time.Time)
	_ = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files[p] = info.ModTime()
		}
		return nil
	})
	return files
}

func TestPlanScenario(t *testing.T) {
	cfg := testConfig(t)
	log := audit.NewLog()
	maint := &recordingMaintenance{}
	p, err := New(cfg, Options{Maintenance: maint, Audit: log, LivenessOverride: noOverride})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusPlanned, plan.Status)
	assert.NotEmpty(t, plan.RunID)
	assert.Len(t, plan.Batches, 2)
	assert.Greater(t, plan.LevelOf("task3"), plan.LevelOf("task1"))
	assert.InDelta(t, 0.667, plan.Summary.ParallelizationFactor, 0.001)
	assert.Equal(t, 3, plan.Summary.TotalTasks)
	assert.Equal(t, len(plan.Intersections), plan.Summary.TotalIntersections)
	assert.Equal(t, 1, maint.paused)
	assert.Equal(t, 1, maint.resumed)

	// lock is released after the run
	lock := filelock.NewFileLock(cfg.PlanningLockPath())
	ok, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	lock.Unlock()
}

func TestPlanWritesAuditLine(t *testing.T) {
	cfg := testConfig(t)
	log, err := audit.Open(cfg.Audit.Dir, "", time.Now())
	require.NoError(t, err)
	p, err := New(cfg, Options{Audit: log, LivenessOverride: noOverride})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)

	entries, err := audit.ReadJSONL(log.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.KindPlan, entries[0].Kind)
	assert.Equal(t, plan.RunID, entries[0].RunID)
	assert.Equal(t, "planned", entries[0].Status)
}

func TestPlanBlockedWhenLiveInstanceReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Safety.HealthURL = srv.URL
	maint := &recordingMaintenance{}
	log, err := audit.Open(cfg.Audit.Dir, "", time.Now())
	require.NoError(t, err)
	p, err := New(cfg, Options{Maintenance: maint, Audit: log, LivenessOverride: noOverride})
	require.NoError(t, err)

	before := snapshot(t, filepath.Dir(cfg.StateDir))
	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusBlocked, plan.Status)
	assert.Contains(t, plan.Reason, "live instance detected")
	assert.Empty(t, plan.Batches)
	assert.Equal(t, 0, maint.paused)
	assert.Equal(t, before, snapshot(t, filepath.Dir(cfg.StateDir)), "blocked runs write nothing")
}

func TestPlanOverrideSkipsLivenessGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Safety.HealthURL = srv.URL
	p, err := New(cfg, Options{LivenessOverride: func() bool { return true }})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusPlanned, plan.Status)
}

func TestHTTPProberTreatsUnreachableAsSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	live, detail := NewHTTPProber(url, 200*time.Millisecond).Probe(context.Background())
	assert.False(t, live)
	assert.Contains(t, detail, "unreachable")

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	live, _ = NewHTTPProber(slow.URL, 50*time.Millisecond).Probe(context.Background())
	assert.False(t, live, "timeout counts as safe")
}

func TestPlanLockedWhenAnotherRunHoldsLock(t *testing.T) {
	cfg := testConfig(t)
	holder := filelock.NewFileLock(cfg.PlanningLockPath())
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	maint := &recordingMaintenance{}
	p, err := New(cfg, Options{Maintenance: maint, LivenessOverride: noOverride})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusLocked, plan.Status)
	assert.Equal(t, 0, maint.paused)
	assert.Equal(t, 0, maint.resumed)
}

func TestPlanDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Planner.Enabled = false
	p, err := New(cfg, Options{LivenessOverride: noOverride})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusDisabled, plan.Status)
	assert.NoFileExists(t, cfg.PlanningLockPath())
}

func TestPlanCycleIsStructuralError(t *testing.T) {
	cfg := testConfig(t)
	maint := &recordingMaintenance{}
	p, err := New(cfg, Options{Maintenance: maint, LivenessOverride: noOverride})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), []models.Task{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	})
	require.Error(t, err)
	var cycleErr *CycleError
	assert.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, models.PlanStatusError, plan.Status)
	assert.Contains(t, plan.Reason, "circular dependency")
	assert.Empty(t, plan.Batches)
	assert.Equal(t, 1, maint.resumed, "maintenance resumes on failure")
}

func TestPlanMaintenancePauseFailure(t *testing.T) {
	cfg := testConfig(t)
	maint := &recordingMaintenance{pauseErr: errors.New("busy")}
	p, err := New(cfg, Options{Maintenance: maint, LivenessOverride: noOverride})
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), scenarioTasks())
	require.Error(t, err)
	assert.Equal(t, models.PlanStatusError, plan.Status)
	assert.Equal(t, 0, maint.resumed, "nothing to resume when pause failed")
}

func TestPlannerReusesCacheAcrossRuns(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, Options{LivenessOverride: noOverride})
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)
	_, err = p.Plan(context.Background(), scenarioTasks())
	require.NoError(t, err)

	hits, _ := p.Cache().Stats()
	assert.Equal(t, int64(1), hits)
}

func TestPlannerRebuildsGraphWhenDurationsChange(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, Options{LivenessOverride: noOverride})
	require.NoError(t, err)

	tasks := scenarioTasks()
	for i := range tasks {
		tasks[i].EstimatedDuration = time.Minute
	}
	first, err := p.Plan(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, first.Summary.SequentialDuration)

	for i := range tasks {
		tasks[i].EstimatedDuration = time.Hour
	}
	second, err := p.Plan(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, second.Summary.SequentialDuration)

	hits, _ := p.Cache().Stats()
	assert.Equal(t, int64(0), hits)
}
