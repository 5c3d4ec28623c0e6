package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison/weaver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		wantSeen []string
		wantGone []string
	}{
		{level: "trace", wantSeen: []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantSeen: []string{"INFO", "WARN", "ERROR"}, wantGone: []string{"TRACE", "DEBUG"}},
		{level: "error", wantSeen: []string{"ERROR"}, wantGone: []string{"INFO", "WARN"}},
		{level: "bogus", wantSeen: []string{"INFO"}, wantGone: []string{"DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewConsoleLogger(&buf, tt.level)
			l.Tracef("t")
			l.Debugf("d")
			l.Infof("i %d", 1)
			l.Warnf("w")
			l.Errorf("e")

			out := buf.String()
			for _, s := range tt.wantSeen {
				assert.Contains(t, out, "["+s+"]")
			}
			for _, s := range tt.wantGone {
				assert.NotContains(t, out, "["+s+"]")
			}
		})
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	l := NewConsoleLogger(nil, "info")
	l.Infof("nothing happens")
	l.LogPlanSummary(&models.BatchPlan{Status: models.PlanStatusPlanned})
}

func TestConsoleLoggerPlanSummary(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogPlanSummary(&models.BatchPlan{
		Status:   models.PlanStatusPlanned,
		Findings: []string{"batch count 6 exceeds limit 5"},
		Summary: models.PlanSummary{
			TotalTasks:            3,
			TotalBatches:          2,
			TotalLevels:           2,
			ParallelizationFactor: 2.0 / 3.0,
			EstimatedSpeedup:      1.5,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "=== Plan Summary ===")
	assert.Contains(t, out, "Tasks: 3  Batches: 2  Levels: 2")
	assert.Contains(t, out, "Parallelization: 66.7%")
	assert.Contains(t, out, "Finding: batch count 6 exceeds limit 5")
}

func TestConsoleLoggerBlockedPlanShowsReasonOnly(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogPlanSummary(&models.BatchPlan{Status: models.PlanStatusBlocked, Reason: "live system detected"})

	out := buf.String()
	assert.Contains(t, out, "Status: blocked")
	assert.Contains(t, out, "Reason: live system detected")
	assert.NotContains(t, out, "Parallelization")
}

func TestConsoleLoggerWeaveSummary(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogWeaveSummary(&models.WeaveStatus{
		Status:             models.WeavePartial,
		Reason:             "1 intersection failed",
		TotalIntersections: 3,
		ReadyIntersections: 2,
		Completed:          []string{"ix-1"},
		Failed:             []string{"ix-2"},
		AutoMerged:         1,
		ValidationErrors:   []string{"syntax: a.py"},
	})

	out := buf.String()
	assert.Contains(t, out, "Completed: 1")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "1 auto-merged, 0 manual review")
	assert.Contains(t, out, "- syntax: a.py")
}

func TestFileLoggerWritesRunLogAndSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "debug")
	require.NoError(t, err)

	fl.Debugf("debug %s", "line")
	fl.Tracef("hidden")
	fl.LogPlanSummary(&models.BatchPlan{
		Status:  models.PlanStatusPlanned,
		Batches: []models.Batch{{ID: "batch-1", TaskIDs: []string{"a", "b"}}},
	})
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "=== Weaver Run Log ===")
	assert.Contains(t, content, "[DEBUG] debug line")
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "batch-1 (level 0, risk 0.0000): a, b")

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.RunFile()), target)
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiLogger(NewConsoleLogger(&a, "info"), nil, NewConsoleLogger(&b, "info"))
	m.Warnf("careful")

	assert.True(t, strings.Contains(a.String(), "careful"))
	assert.True(t, strings.Contains(b.String(), "careful"))
}
