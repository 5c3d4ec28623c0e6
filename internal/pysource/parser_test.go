package pysource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/weaver/internal/models"
)

const sampleModule = `"""Billing helpers."""
import os
import numpy as np
from .models import Invoice, Customer as C
from typing import (
    Optional,
    List,
)

RATE: float = 0.2


@cached
def compute_total(amount: float, tax: float = 0.1, *items, currency: str = "USD", **extra) -> float:
    return round(amount * (1 + tax), 2)


async def fetch(client, url):
    return await client.get(url)


class Ledger(Base, metaclass=Meta):
    def __init__(self, owner: str):
        self.owner = owner

    def post(self, entry, /, amount=0):
        compute_total(amount, 0.2, currency="EUR")
        return self.store.save(entry)


def _private():
    pass
`

func extractors() []SignatureExtractor {
	return []SignatureExtractor{NewTreeSitterExtractor(), NewPatternExtractor()}
}

func functionByName(s *models.SourceSummary, name string) *models.FunctionSignature {
	for i := range s.Functions {
		if s.Functions[i].Name == name {
			return &s.Functions[i]
		}
	}
	return nil
}

func TestExtractorsAgreeOnSurface(t *testing.T) {
	for _, ex := range extractors() {
		t.Run(ex.Name(), func(t *testing.T) {
			s, err := ex.Extract(context.Background(), "billing/core.py", []byte(sampleModule))
			require.NoError(t, err)

			names := make([]string, 0, len(s.Functions))
			for _, f := range s.Functions {
				names = append(names, f.Name)
			}
			assert.Equal(t, []string{"compute_total", "fetch", "_private"}, names)

			total := functionByName(s, "compute_total")
			require.NotNil(t, total)
			assert.Equal(t, "float", total.ReturnType)
			assert.Equal(t, []string{"cached"}, total.Decorators)
			require.Len(t, total.Params, 5)
			assert.Equal(t, models.Parameter{Name: "amount", Annotation: "float"}, total.Params[0])
			assert.Equal(t, "0.1", total.Params[1].Default)
			assert.True(t, total.Params[2].Variadic)
			assert.True(t, total.Params[3].KeywordOnly)
			assert.True(t, total.Params[4].KwVariadic)
			min, max := total.Arity()
			assert.Equal(t, 1, min)
			assert.Equal(t, -1, max)

			fetch := functionByName(s, "fetch")
			require.NotNil(t, fetch)
			assert.True(t, fetch.Async)

			require.Len(t, s.Classes, 1)
			ledger := s.Classes[0]
			assert.Equal(t, "Ledger", ledger.Name)
			assert.Equal(t, []string{"Base"}, ledger.Bases)
			require.Len(t, ledger.Methods, 2)
			assert.Equal(t, "post", ledger.Methods[1].Name)
			assert.Equal(t, "Ledger", ledger.Methods[1].Class)

			assert.Equal(t, "float", s.TypeHints["RATE"])

			require.Len(t, s.Imports, 4)
			assert.Equal(t, "os", s.Imports[0].Module)
			assert.Equal(t, "np", s.Imports[1].Alias)
			assert.Equal(t, ".models", s.Imports[2].Module)
			assert.Equal(t, []string{"Invoice", "Customer as C"}, s.Imports[2].Names)
			assert.Equal(t, []string{"Optional", "List"}, s.Imports[3].Names)

			var found bool
			for _, c := range s.Calls {
				if c.Name == "compute_total" {
					found = true
					assert.Equal(t, 2, c.Positional)
					assert.Equal(t, []string{"currency"}, c.Keywords)
					assert.False(t, c.Attribute)
				}
			}
			assert.True(t, found, "call to compute_total should be recorded")
		})
	}
}

func TestConfidenceIsPartOfResult(t *testing.T) {
	ts, err := NewTreeSitterExtractor().Extract(context.Background(), "a.py", []byte("def f(x):\n    return x\n"))
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceHigh, ts.Confidence)

	pt, err := NewPatternExtractor().Extract(context.Background(), "a.py", []byte("def f(x):\n    return x\n"))
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceMedium, pt.Confidence)
}

func TestChainFallsBackOnSyntaxError(t *testing.T) {
	broken := []byte("def ok(a, b):\n    return a\n\ndef broken(:\n    pass\n")

	_, err := NewTreeSitterExtractor().Extract(context.Background(), "x.py", broken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))

	s, err := Parse(context.Background(), "x.py", broken)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceMedium, s.Confidence)
	assert.Equal(t, "pattern", s.Extractor)
	require.NotNil(t, functionByName(s, "ok"))
}

func TestChainIsAnExtractor(t *testing.T) {
	var ex SignatureExtractor = NewChain()
	assert.Equal(t, "tree-sitter>pattern", ex.Name())

	s, err := ex.Extract(context.Background(), "a.py", []byte("def f(x):\n    return x\n"))
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceHigh, s.Confidence)
}

func TestCheckSyntax(t *testing.T) {
	require.NoError(t, CheckSyntax(context.Background(), "ok.py", []byte("x = 1\n")))

	err := CheckSyntax(context.Background(), "bad.py", []byte("x = 1\nif x\n    y = 2\n"))
	var synErr *SyntaxError
	require.True(t, errors.As(err, &synErr))
	assert.Equal(t, "bad.py", synErr.File)
	assert.GreaterOrEqual(t, synErr.Line, 2)
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"pkg/mod.py", "pkg.mod"},
		{"pkg/__init__.py", "pkg"},
		{"./top.py", "top"},
		{"a/b/c.pyi", "a.b.c"},
		{"__init__.py", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModuleName(tt.path), tt.path)
	}
	assert.Equal(t, []string{"a/b.py", "a/b/__init__.py"}, ModuleFiles("a.b"))
}

func TestResolveImport(t *testing.T) {
	tests := []struct {
		name string
		file string
		imp  models.Import
		want []string
	}{
		{"absolute", "app/main.py", models.Import{Module: "app.db"}, []string{"app.db"}},
		{"from submodule", "app/main.py", models.Import{Module: "app", From: true, Names: []string{"db as d"}}, []string{"app", "app.db"}},
		{"relative sibling", "app/api/views.py", models.Import{Module: ".models", From: true, Names: []string{"User"}}, []string{"app.api.models", "app.api.models.User"}},
		{"relative parent", "app/api/views.py", models.Import{Module: "..core", From: true, Names: []string{"*"}}, []string{"app.core"}},
		{"bare dot", "app/api/views.py", models.Import{Module: ".", From: true, Names: []string{"serializers"}}, []string{"app.api", "app.api.serializers"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveImport(tt.file, tt.imp))
		})
	}
}

func TestImportInsertionLine(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{"empty", "", 0},
		{"docstring only", "\"\"\"Doc.\"\"\"\nx = 1\n", 1},
		{"docstring and imports", "\"\"\"Doc.\n\nMore.\n\"\"\"\nimport os\nfrom a import b\n\nx = 1\n", 6},
		{"no imports", "x = 1\n", 0},
		{"comment header", "# header\nimport os\nx = 1\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImportInsertionLine(context.Background(), []byte(tt.src)))
			assert.Equal(t, tt.want, importInsertionLineByPattern(tt.src), "pattern fallback")
		})
	}
}

func TestParseParams(t *testing.T) {
	params := ParseParams("self, a: Dict[str, int] = {}, *, flag=False")
	require.Len(t, params, 3)
	assert.Equal(t, "Dict[str, int]", params[1].Annotation)
	assert.Equal(t, "{}", params[1].Default)
	assert.True(t, params[2].KeywordOnly)
}
