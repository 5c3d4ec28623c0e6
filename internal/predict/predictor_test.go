package predict

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/weaver/internal/models"
)

const producedModule = `"""Storage helpers."""
import os
from typing import Optional

DEFAULT_ROOT: str = "/tmp"


def load(path: str, mode: str = "r", *args, strict: bool = False, **kwargs) -> Optional[str]:
    return None


async def fetch(url):
    return url


def _private():
    pass


class Store(Base):
    def get(self, key):
        return key
`

func handoff(loc string) models.Intersection {
	return models.Intersection{
		ID:          "ix-001",
		Type:        models.IntersectionFunctionHandoff,
		SourceBatch: "batch-1",
		TargetBatch: "batch-2",
		Location:    loc,
		Pattern:     models.PatternHandoffFunction,
	}
}

func resultsWith(file, content string) map[string]*models.BatchResult {
	return map[string]*models.BatchResult{
		"batch-1": {
			BatchID:       "batch-1",
			Status:        models.BatchStatusCompleted,
			ModifiedFiles: []string{file},
			Changes:       map[string]models.FileChange{file: {Content: content}},
		},
	}
}

func TestPredictFromBatchChanges(t *testing.T) {
	p := NewPredictor(t.TempDir(), nil, nil)
	pred, err := p.Predict(context.Background(), handoff("pkg/store.py"), resultsWith("pkg/store.py", producedModule))
	require.NoError(t, err)

	assert.Equal(t, models.ConfidenceHigh, pred.Confidence)
	assert.Equal(t, "tree-sitter", pred.Extractor)
	require.Len(t, pred.Functions, 2, "private functions are not part of the interface")
	assert.Equal(t, "load", pred.Functions[0].Name)
	assert.Equal(t, "Optional[str]", pred.Functions[0].ReturnType)
	assert.True(t, pred.Functions[1].Async)
	require.Len(t, pred.Classes, 1)
	assert.Equal(t, []string{"Base"}, pred.Classes[0].Bases)
	assert.Equal(t, []string{"from typing import Optional", "import os"}, pred.Imports)
	assert.Equal(t, "str", pred.TypeHints["DEFAULT_ROOT"])
	assert.Equal(t, []string{
		"load(path, mode, *args, strict=strict, **kwargs)",
		"fetch(url)",
	}, pred.CallPatterns)
}

func TestPredictFallsBackToPatternExtractor(t *testing.T) {
	broken := "def ok(a, b=1):\n    return a\n\ndef broken(:\n"
	p := NewPredictor(t.TempDir(), nil, nil)
	pred, err := p.Predict(context.Background(), handoff("pkg/broken.py"), resultsWith("pkg/broken.py", broken))
	require.NoError(t, err)

	assert.Equal(t, models.ConfidenceMedium, pred.Confidence, "fallback never reports high confidence")
	assert.Equal(t, "pattern", pred.Extractor)
	require.NotEmpty(t, pred.Functions)
	assert.Equal(t, "ok", pred.Functions[0].Name)
}

func TestPredictReadsDiskWhenBatchHasNoContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "disk.py"), []byte("def from_disk():\n    pass\n"), 0644))

	p := NewPredictor(root, nil, nil)
	pred, err := p.Predict(context.Background(), handoff("pkg/disk.py"), nil)
	require.NoError(t, err)
	require.Len(t, pred.Functions, 1)
	assert.Equal(t, "from_disk", pred.Functions[0].Name)
}

func TestPredictMissingSourceIsLowConfidence(t *testing.T) {
	p := NewPredictor(t.TempDir(), nil, nil)
	pred, err := p.Predict(context.Background(), handoff("pkg/missing.py"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceLow, pred.Confidence)
	assert.Empty(t, pred.Functions)
}

func TestPredictCallPatternsOnlyForHandoffs(t *testing.T) {
	ix := handoff("pkg/store.py")
	ix.Type = models.IntersectionImportChain
	ix.Pattern = models.PatternImportPrediction

	p := NewPredictor(t.TempDir(), nil, nil)
	pred, err := p.Predict(context.Background(), ix, resultsWith("pkg/store.py", producedModule))
	require.NoError(t, err)
	assert.Empty(t, pred.CallPatterns)
	assert.Equal(t, models.PatternImportPrediction, pred.Pattern)
}

func TestPredictAllKeepsOrder(t *testing.T) {
	results := resultsWith("pkg/a.py", "def a():\n    pass\n")
	results["batch-1"].Changes["pkg/b.py"] = models.FileChange{Content: "def b():\n    pass\n"}

	var ixs []models.Intersection
	for i, loc := range []string{"pkg/a.py", "pkg/b.py", "pkg/a.py", "pkg/b.py"} {
		ix := handoff(loc)
		ix.ID = string(rune('w' + i))
		ixs = append(ixs, ix)
	}

	p := NewPredictor(t.TempDir(), nil, nil)
	preds, err := p.PredictAll(context.Background(), ixs, results, 2)
	require.NoError(t, err)
	require.Len(t, preds, 4)
	for i, pred := range preds {
		assert.Equal(t, ixs[i].ID, pred.IntersectionID)
		require.Len(t, pred.Functions, 1)
	}
	assert.Equal(t, "a", preds[0].Functions[0].Name)
	assert.Equal(t, "b", preds[3].Functions[0].Name)
}

func TestPredictAllStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPredictor(t.TempDir(), nil, nil)
	_, err := p.PredictAll(ctx, []models.Intersection{handoff("pkg/a.py")}, nil, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
