package glue

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/weaver/internal/config"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

func newGenerator() *Generator {
	return NewGenerator(config.DefaultConfig().Glue)
}

func sampleInterface(pattern models.GluePattern) *models.PredictedInterface {
	return &models.PredictedInterface{
		Location: "pkg/store.py",
		Pattern:  pattern,
		Functions: []models.FunctionSignature{
			{
				Name:       "load",
				ReturnType: "str",
				Params: []models.Parameter{
					{Name: "path", Annotation: "str"},
					{Name: "mode", Default: `"r"`},
					{Name: "strict", Default: "False", KeywordOnly: true},
				},
			},
			{Name: "fetch", Async: true, Params: []models.Parameter{{Name: "url"}}},
		},
		Classes:   []models.ClassSignature{{Name: "Store"}},
		TypeHints: map[string]string{"ROOT": "str", "LIMIT": "int"},
	}
}

func request(pattern models.GluePattern) Request {
	return Request{
		Intersection: models.Intersection{
			ID:          "ix-001",
			SourceBatch: "batch-1",
			TargetBatch: "batch-2",
			Location:    "pkg/store.py",
			Pattern:     pattern,
		},
		Interface:  sampleInterface(pattern),
		TargetFile: "app/use.py",
	}
}

func assertParses(t *testing.T, code string) {
	t.Helper()
	assert.NoError(t, pysource.CheckSyntax(context.Background(), "glue.py", []byte(code)), code)
}

func TestGenerateHandoff(t *testing.T) {
	code := newGenerator().Generate(request(models.PatternHandoffFunction))

	assert.Equal(t, "ix-001", code.IntersectionID)
	assert.Equal(t, models.PatternHandoffFunction, code.Pattern)
	assert.Equal(t, models.InsertAppend, code.InsertionStrategy)
	assert.Equal(t, "app/use.py", code.TargetLocation)
	assert.Equal(t, []string{"from pkg.store import fetch, load"}, code.Imports)
	assert.Contains(t, code.Code, `def load_handoff(path: str, mode="r", *, strict=False) -> str:`)
	assert.Contains(t, code.Code, "return load(path, mode, strict=strict)")
	assert.Contains(t, code.Code, "async def fetch_handoff(url):")
	assert.Contains(t, code.Code, "return await fetch(url)")
	assert.Equal(t, "python3 -m py_compile 'app/use.py'", code.ValidationCommand)
	assertParses(t, code.Code)
}

func TestGenerateHandoffIntoSourceModuleNeedsNoImport(t *testing.T) {
	req := request(models.PatternHandoffFunction)
	req.TargetFile = ""
	code := newGenerator().Generate(req)
	assert.Empty(t, code.Imports)
	assert.Equal(t, "pkg/store.py", code.TargetLocation)
}

func TestGenerateImportPrediction(t *testing.T) {
	code := newGenerator().Generate(request(models.PatternImportPrediction))

	assert.Equal(t, models.InsertPrepend, code.InsertionStrategy)
	assert.Equal(t, []string{"from pkg.store import Store, fetch, load"}, code.Imports)
	assert.Equal(t, "from pkg.store import Store, fetch, load\n", code.Code)
	assertParses(t, code.Code)
}

func TestGenerateImportPredictionWithoutNames(t *testing.T) {
	req := request(models.PatternImportPrediction)
	req.Interface.Functions = nil
	req.Interface.Classes = nil
	code := newGenerator().Generate(req)
	assert.Equal(t, []string{"import pkg.store"}, code.Imports)
}

func TestGenerateAdapter(t *testing.T) {
	code := newGenerator().Generate(request(models.PatternAdapter))

	assert.Equal(t, models.InsertNewFile, code.InsertionStrategy)
	assert.Equal(t, "pkg/store_adapter.py", code.TargetLocation)
	assert.Contains(t, code.Code, "class StoreAdapter:")
	assert.Contains(t, code.Code, `raise NotImplementedError("StoreAdapter.load requires manual integration")`)
	assert.Contains(t, code.Code, `raise NotImplementedError("StoreAdapter.fetch requires manual integration")`)
	assert.Contains(t, code.Code, "def load(self, path: str")
	assertParses(t, code.Code)
}

func TestGenerateTypeConverter(t *testing.T) {
	code := newGenerator().Generate(request(models.PatternTypeConverter))

	assert.Equal(t, models.InsertNewFile, code.InsertionStrategy)
	assert.Equal(t, "pkg/_converters.py", code.TargetLocation)
	assert.Contains(t, code.Code, "def safe_convert(value, target_type, default=None):")
	assert.Contains(t, code.Code, "def strict_convert(value, target_type):")
	assert.Contains(t, code.Code, `"LIMIT": "int",`)
	assert.Less(t, strings.Index(code.Code, `"LIMIT"`), strings.Index(code.Code, `"ROOT"`))
	assertParses(t, code.Code)
}

func TestGenerateUnknownPatternFallsBackToPlainImport(t *testing.T) {
	code := newGenerator().Generate(request("shim"))
	assert.Equal(t, []string{"import pkg.store"}, code.Imports)
	assert.Equal(t, models.InsertPrepend, code.InsertionStrategy)
	assert.False(t, Supported("shim"))
	assert.True(t, Supported(models.PatternAdapter))
}

func TestGenerateDisabled(t *testing.T) {
	cfg := config.DefaultConfig().Glue
	cfg.Enabled = false
	code := NewGenerator(cfg).Generate(request(models.PatternHandoffFunction))

	assert.True(t, code.Disabled)
	assert.True(t, code.Empty())
	assert.Equal(t, "glue generation disabled", code.Reason)
}

func TestSortImports(t *testing.T) {
	got := SortImports([]string{"import sys", " import os", "", "import sys", "from a import b"})
	assert.Equal(t, []string{"from a import b", "import os", "import sys"}, got)
}

func TestRequestPatternPrecedence(t *testing.T) {
	req := request(models.PatternAdapter)
	req.Interface.Pattern = models.PatternImportPrediction
	require.Equal(t, models.PatternImportPrediction, req.pattern())
	req.Pattern = models.PatternTypeConverter
	assert.Equal(t, models.PatternTypeConverter, req.pattern())
}

func TestValidationCommandQuotesTargetPath(t *testing.T) {
	req := request(models.PatternHandoffFunction)
	req.TargetFile = "app/it's here.py"
	code := newGenerator().Generate(req)

	assert.Equal(t, "app/it's here.py", code.TargetLocation)
	assert.Equal(t, `python3 -m py_compile 'app/it'"'"'s here.py'`, code.ValidationCommand)
}
