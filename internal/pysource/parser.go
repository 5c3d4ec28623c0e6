// Package pysource extracts the public surface of Python-like source files:
// function and class signatures, imports, annotated assignments and call
// sites. Two strategies sit behind SignatureExtractor: a structural
// tree-sitter parser and a line-pattern fallback.
package pysource

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/harrison/weaver/internal/models"
)

// ErrSyntax is returned by structural extraction when the source does not parse.
var ErrSyntax = errors.New("syntax error")

// SyntaxError locates the first unparseable region of a file.
type SyntaxError struct {
	File string
	Line int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error", e.File, e.Line)
}

// Is lets errors.Is match ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// SignatureExtractor turns one source file into a SourceSummary. The
// confidence of the result is part of the returned value.
type SignatureExtractor interface {
	Name() string
	Extract(ctx context.Context, file string, src []byte) (*models.SourceSummary, error)
}

// Chain tries each extractor in order and returns the first success.
type Chain struct {
	extractors []SignatureExtractor
}

// NewChain builds a chain. With no arguments it uses tree-sitter first and
// the pattern extractor as fallback.
func NewChain(extractors ...SignatureExtractor) *Chain {
	if len(extractors) == 0 {
		extractors = []SignatureExtractor{NewTreeSitterExtractor(), NewPatternExtractor()}
	}
	return &Chain{extractors: extractors}
}

// Name joins the names of the chained extractors, e.g. "tree-sitter>pattern".
func (c *Chain) Name() string {
	names := make([]string, len(c.extractors))
	for i, ex := range c.extractors {
		names[i] = ex.Name()
	}
	return strings.Join(names, ">")
}

// Extract runs the chain. The error from the last extractor is returned only
// when every strategy fails.
func (c *Chain) Extract(ctx context.Context, file string, src []byte) (*models.SourceSummary, error) {
	var lastErr error
	for _, ex := range c.extractors {
		summary, err := ex.Extract(ctx, file, src)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no extractors configured")
	}
	return nil, fmt.Errorf("extract %s: %w", file, lastErr)
}

// Parse is a convenience wrapper around the default chain.
func Parse(ctx context.Context, file string, src []byte) (*models.SourceSummary, error) {
	return NewChain().Extract(ctx, file, src)
}

// IsPython reports whether the path names a Python-like module.
func IsPython(p string) bool {
	ext := path.Ext(p)
	return ext == ".py" || ext == ".pyi"
}

// IsInit reports whether the path is a package marker.
func IsInit(p string) bool {
	base := path.Base(toSlash(p))
	return base == "__init__.py" || base == "__init__.pyi"
}

// ModuleName converts a file path to its dotted module name:
// "pkg/mod.py" -> "pkg.mod", "pkg/__init__.py" -> "pkg".
func ModuleName(p string) string {
	p = path.Clean(toSlash(p))
	if IsInit(p) {
		p = path.Dir(p)
	} else {
		p = strings.TrimSuffix(strings.TrimSuffix(p, ".pyi"), ".py")
	}
	if p == "." || p == "" {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(p, "./"), "/", ".")
}

// ModuleFiles returns the file paths a dotted module may live at.
func ModuleFiles(module string) []string {
	if module == "" {
		return nil
	}
	base := strings.ReplaceAll(module, ".", "/")
	return []string{base + ".py", base + "/__init__.py"}
}

// ResolveImport returns the absolute dotted modules an import may refer to,
// resolving relative imports against the importing file's package. For
// "from X import a" both X and X.a are candidates since a may be a submodule.
func ResolveImport(fromFile string, imp models.Import) []string {
	module := imp.Module
	if strings.HasPrefix(module, ".") {
		dots := len(module) - len(strings.TrimLeft(module, "."))
		rest := strings.TrimLeft(module, ".")
		pkg := path.Dir(path.Clean(toSlash(fromFile)))
		for i := 1; i < dots; i++ {
			pkg = path.Dir(pkg)
		}
		prefix := ""
		if pkg != "." && pkg != "/" {
			prefix = strings.ReplaceAll(pkg, "/", ".")
		}
		switch {
		case prefix == "":
			module = rest
		case rest == "":
			module = prefix
		default:
			module = prefix + "." + rest
		}
	}
	if module == "" && !imp.From {
		return nil
	}

	var out []string
	if module != "" {
		out = append(out, module)
	}
	if imp.From {
		for _, name := range imp.Names {
			name = strings.TrimSpace(strings.SplitN(name, " as ", 2)[0])
			if name == "" || name == "*" {
				continue
			}
			if module == "" {
				out = append(out, name)
			} else {
				out = append(out, module+"."+name)
			}
		}
	}
	return out
}

// IsRelative reports whether the import is package-relative.
func IsRelative(imp models.Import) bool {
	return strings.HasPrefix(imp.Module, ".")
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func newSummary(file string, confidence models.Confidence, extractor string) *models.SourceSummary {
	return &models.SourceSummary{
		File:       file,
		Functions:  []models.FunctionSignature{},
		Classes:    []models.ClassSignature{},
		Imports:    []models.Import{},
		TypeHints:  map[string]string{},
		Confidence: confidence,
		Extractor:  extractor,
	}
}
