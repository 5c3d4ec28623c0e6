package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/harrison/weaver/internal/models"
)

func samplePlan() *models.BatchPlan {
	return &models.BatchPlan{
		Status: models.PlanStatusPlanned,
		Batches: []models.Batch{
			{ID: "batch-1", TaskIDs: []string{"1", "2"}, Level: 0, CumulativeRisk: 0.0015, Files: []string{"a.py", "b.py"}},
			{ID: "batch-2", TaskIDs: []string{"3"}, Level: 1, Files: []string{"c.py", "d.py", "e.py", "f.py"}, ForcePlaced: true},
		},
		Intersections: []models.Intersection{
			{ID: "ix-001", Type: models.IntersectionFunctionHandoff, SourceBatch: "batch-1", TargetBatch: "batch-2",
				Location: "a.py", Priority: models.PriorityMedium, Pattern: models.PatternHandoffFunction},
		},
	}
}

func TestPlanTable(t *testing.T) {
	var buf bytes.Buffer
	PlanTable(&buf, samplePlan(), false)
	out := buf.String()

	for _, want := range []string{"LEVEL", "BATCH", "batch-1", "1, 2", "0.0015", "batch-2 *", "c.py, d.py, e.py (+1)", "force-placed"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan table missing %q:\n%s", want, out)
		}
	}
}

func TestPlanTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	PlanTable(&buf, &models.BatchPlan{}, false)
	if strings.TrimSpace(buf.String()) != "No batches." {
		t.Errorf("got %q", buf.String())
	}
}

func TestIntersectionTable(t *testing.T) {
	var buf bytes.Buffer
	IntersectionTable(&buf, samplePlan().Intersections, false)
	out := buf.String()
	for _, want := range []string{"ix-001", "function_handoff", "batch-1 -> batch-2", "handoff_function"} {
		if !strings.Contains(out, want) {
			t.Errorf("intersection table missing %q:\n%s", want, out)
		}
	}
}

func TestValidationReport(t *testing.T) {
	res := &models.ValidationResult{
		Status: models.ValidationFailed,
		Reason: "blocking layers failed: syntax",
		Layers: []models.LayerResult{
			{Name: "syntax", Status: models.LayerFailed, Blocking: true},
			{Name: "tests", Status: models.LayerSkipped, Reason: "python3 not installed"},
		},
		BlockingIssues: []string{"syntax: a.py:1: invalid syntax"},
		Warnings:       []string{"imports: cannot verify"},
	}
	var buf bytes.Buffer
	ValidationReport(&buf, res, false)
	out := buf.String()
	for _, want := range []string{"Validation: failed", "syntax", "blocking", "advisory python3 not installed", "x syntax: a.py:1", "! imports"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestExecutionReport(t *testing.T) {
	var buf bytes.Buffer
	ExecutionReport(&buf, []models.ExecutionResult{
		{IntersectionID: "ix-001", Status: models.ExecutionCompleted, Reason: "1 files updated"},
		{IntersectionID: "ix-002", Status: models.ExecutionFailed, Reason: "validation failed", RolledBack: true},
		{IntersectionID: "ix-003", Status: models.ExecutionSkipped},
	}, false)
	out := buf.String()
	for _, want := range []string{"ok ix-001", "!! ix-002 validation failed (rolled back)", "-- ix-003"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestResolutionReport(t *testing.T) {
	res := &models.FileResolution{
		File:       "shared/settings.py",
		Applicable: true,
		Resolutions: []models.Resolution{{
			Conflict: models.Conflict{File: "shared/settings.py", A: models.Change{StartLine: 0, EndLine: 0}, Type: models.ChangeImport},
			Strategy: models.StrategyAutoMerge,
			Reason:   "merged imports",
		}},
	}
	var buf bytes.Buffer
	ResolutionReport(&buf, res, false)
	out := buf.String()
	if !strings.Contains(out, "shared/settings.py: auto_merge (1 conflicts)") || !strings.Contains(out, "lines 1-1 [import] auto_merge: merged imports") {
		t.Errorf("unexpected report:\n%s", out)
	}
}
