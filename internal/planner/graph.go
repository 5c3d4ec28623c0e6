package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

// Logger is the logging surface the planner needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// GraphBuilder derives must-run-after edges from the imports in each task's
// files plus the tasks' explicit dependencies.
type GraphBuilder struct {
	root      string
	extractor pysource.SignatureExtractor
	logger    Logger
}

// NewGraphBuilder reads sources relative to root.
func NewGraphBuilder(root string, logger Logger) *GraphBuilder {
	return &GraphBuilder{
		root:      root,
		extractor: pysource.NewChain(),
		logger:    logger,
	}
}

// Build returns the dependency graph for tasks, consulting cache first.
// Graphs handed out by the cache are shared and must be treated as read-only.
func (b *GraphBuilder) Build(ctx context.Context, tasks []models.Task, cache *GraphCache) (*models.DependencyGraph, error) {
	if err := models.ValidateTasks(tasks); err != nil {
		return nil, err
	}

	sources := b.readSources(tasks)
	key := Fingerprint(tasks, sources)
	if g, ok := cache.Get(key); ok {
		b.logger.Debugf("dependency graph cache hit (%s)", key[:12])
		return g, nil
	}

	g, err := b.build(ctx, tasks, sources)
	if err != nil {
		return nil, err
	}
	cache.Add(key, g)
	return g, nil
}

func (b *GraphBuilder) readSources(tasks []models.Task) map[string][]byte {
	sources := make(map[string][]byte)
	for i := range tasks {
		for _, f := range tasks[i].NormalizedFiles() {
			if _, seen := sources[f]; seen || !pysource.IsPython(f) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(f)))
			if err != nil {
				b.logger.Debugf("skipping unreadable file %s: %v", f, err)
				continue
			}
			sources[f] = data
		}
	}
	return sources
}

func (b *GraphBuilder) build(ctx context.Context, tasks []models.Task, sources map[string][]byte) (*models.DependencyGraph, error) {
	owned := make([]models.Task, len(tasks))
	copy(owned, tasks)

	g := models.NewDependencyGraph()
	owners := make(map[string][]string) // dotted module -> task ids producing it
	for i := range owned {
		g.AddTask(&owned[i])
		for _, f := range owned[i].NormalizedFiles() {
			if !pysource.IsPython(f) {
				continue
			}
			mod := pysource.ModuleName(f)
			owners[mod] = appendUnique(owners[mod], owned[i].ID)
		}
	}

	for i := range owned {
		task := &owned[i]
		for _, f := range task.NormalizedFiles() {
			src, ok := sources[f]
			if !ok {
				continue
			}
			summary, err := b.extractor.Extract(ctx, f, src)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				b.logger.Debugf("no imports extracted from %s: %v", f, err)
				continue
			}
			for _, imp := range summary.Imports {
				for _, mod := range pysource.ResolveImport(f, imp) {
					for _, owner := range owners[mod] {
						if owner != task.ID && g.AddEdge(owner, task.ID) {
							b.logger.Debugf("task %s imports %s from task %s", task.ID, mod, owner)
						}
					}
				}
			}
		}
		for _, dep := range task.Dependencies {
			if _, ok := g.Tasks[dep]; !ok {
				return nil, fmt.Errorf("task %s: depends on non-existent task %s", task.ID, dep)
			}
			g.AddEdge(dep, task.ID)
		}
	}
	return g, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
