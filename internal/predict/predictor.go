// Package predict extracts the API surface a dependent batch is expected to
// consume from the files a source batch produced.
package predict

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/weaver/internal/logger"
	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

// Logger is the subset of the weaver logger used here.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Predictor parses produced files and turns them into predicted interfaces.
type Predictor struct {
	root      string
	extractor pysource.SignatureExtractor
	logger    Logger
}

// NewPredictor creates a predictor rooted at the shared source tree. A nil
// extractor selects the default tree-sitter chain with pattern fallback.
func NewPredictor(root string, extractor pysource.SignatureExtractor, log Logger) *Predictor {
	if extractor == nil {
		extractor = pysource.NewChain()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Predictor{root: root, extractor: extractor, logger: log}
}

// Source returns the content of file as produced by batch. The batch's
// in-memory change wins; otherwise the file is read from the source tree.
func (p *Predictor) Source(result *models.BatchResult, file string) ([]byte, error) {
	if result != nil {
		if change, ok := result.Changes[file]; ok {
			return []byte(change.Content), nil
		}
	}
	data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(file)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

// Predict extracts the interface the target batch of ix is expected to use.
// A missing or unreadable source yields an empty prediction with low
// confidence rather than an error; only cancellation is returned as one.
func (p *Predictor) Predict(ctx context.Context, ix models.Intersection, results map[string]*models.BatchResult) (*models.PredictedInterface, error) {
	pred := &models.PredictedInterface{
		IntersectionID: ix.ID,
		SourceBatch:    ix.SourceBatch,
		TargetBatch:    ix.TargetBatch,
		Location:       ix.Location,
		Functions:      []models.FunctionSignature{},
		Classes:        []models.ClassSignature{},
		Imports:        []string{},
		Pattern:        ix.Pattern,
		Confidence:     models.ConfidenceLow,
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !pysource.IsPython(ix.Location) {
		p.logger.Debugf("Intersection %s: %s is not a Python module, nothing to predict", ix.ID, ix.Location)
		return pred, nil
	}

	src, err := p.Source(results[ix.SourceBatch], ix.Location)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warnf("Intersection %s: %v", ix.ID, err)
		}
		return pred, nil
	}

	summary, err := p.extractor.Extract(ctx, ix.Location, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.logger.Warnf("Intersection %s: %v", ix.ID, err)
		return pred, nil
	}

	pred.Confidence = summary.Confidence
	pred.Extractor = summary.Extractor
	pred.TypeHints = summary.TypeHints
	for _, fn := range summary.Functions {
		if fn.IsPublic() {
			pred.Functions = append(pred.Functions, fn)
		}
	}
	for _, cls := range summary.Classes {
		if !strings.HasPrefix(cls.Name, "_") {
			pred.Classes = append(pred.Classes, cls)
		}
	}
	pred.Imports = importStatements(summary.Imports)
	if ix.Type == models.IntersectionFunctionHandoff {
		pred.CallPatterns = CallPatterns(pred.Functions)
	}
	p.logger.Debugf("Intersection %s: %d functions, %d classes from %s (%s confidence)",
		ix.ID, len(pred.Functions), len(pred.Classes), ix.Location, pred.Confidence)
	return pred, nil
}

// PredictAll runs Predict for every intersection with at most limit running
// at once. Results keep the order of ixs.
func (p *Predictor) PredictAll(ctx context.Context, ixs []models.Intersection, results map[string]*models.BatchResult, limit int) ([]*models.PredictedInterface, error) {
	out := make([]*models.PredictedInterface, len(ixs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range ixs {
		i := i
		g.Go(func() error {
			pred, err := p.Predict(ctx, ixs[i], results)
			if err != nil {
				return fmt.Errorf("predict %s: %w", ixs[i].ID, err)
			}
			out[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CallPatterns renders the call a consumer is expected to make for each
// function, e.g. "load(path, mode, *args, strict=strict)".
func CallPatterns(fns []models.FunctionSignature) []string {
	patterns := make([]string, 0, len(fns))
	for _, fn := range fns {
		patterns = append(patterns, fn.Name+"("+CallArgs(fn)+")")
	}
	return patterns
}

// CallArgs renders the arguments that forward every parameter of fn
// unchanged: positional parameters by position, keyword-only ones by
// keyword.
func CallArgs(fn models.FunctionSignature) string {
	var args []string
	for _, p := range fn.CallableParams() {
		switch {
		case p.Variadic:
			args = append(args, "*"+p.Name)
		case p.KwVariadic:
			args = append(args, "**"+p.Name)
		case p.KeywordOnly:
			args = append(args, p.Name+"="+p.Name)
		default:
			args = append(args, p.Name)
		}
	}
	return strings.Join(args, ", ")
}

func importStatements(imports []models.Import) []string {
	seen := make(map[string]bool, len(imports))
	out := make([]string, 0, len(imports))
	for _, imp := range imports {
		stmt := imp.Statement()
		if !seen[stmt] {
			seen[stmt] = true
			out = append(out, stmt)
		}
	}
	sort.Strings(out)
	return out
}
