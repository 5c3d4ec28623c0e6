package planner

import (
	"fmt"
	"sort"

	"github.com/harrison/weaver/internal/models"
	"github.com/harrison/weaver/internal/pysource"
)

// patternFor maps each intersection type to its integration pattern.
var patternFor = map[models.IntersectionType]models.GluePattern{
	models.IntersectionFileMerge:       models.PatternAdapter,
	models.IntersectionImportChain:     models.PatternImportPrediction,
	models.IntersectionFunctionHandoff: models.PatternHandoffFunction,
}

// MapIntersections predicts where batch outputs must later be combined.
func MapIntersections(g *models.DependencyGraph, batches []models.Batch) []models.Intersection {
	byID := make(map[string]*models.Batch, len(batches))
	batchOfTask := make(map[string]string)
	for i := range batches {
		byID[batches[i].ID] = &batches[i]
		for _, id := range batches[i].TaskIDs {
			batchOfTask[id] = batches[i].ID
		}
	}

	var found []models.Intersection
	seen := make(map[string]bool)
	add := func(ix models.Intersection) {
		ix.Pattern = patternFor[ix.Type]
		if key := ix.DedupKey(); !seen[key] {
			seen[key] = true
			found = append(found, ix)
		}
	}

	// file -> batches touching it, in plan order
	fileBatches := make(map[string][]string)
	for _, b := range batches {
		for _, f := range b.Files {
			fileBatches[f] = append(fileBatches[f], b.ID)
		}
	}
	files := make([]string, 0, len(fileBatches))
	for f := range fileBatches {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		owners := fileBatches[f]
		for i := 0; i < len(owners); i++ {
			for j := i + 1; j < len(owners); j++ {
				a, b := byID[owners[i]], byID[owners[j]]
				add(models.Intersection{
					Type:                       models.IntersectionFileMerge,
					SourceBatch:                a.ID,
					TargetBatch:                b.ID,
					Location:                   f,
					Priority:                   models.PriorityHigh,
					RequiresConflictResolution: true,
					Level:                      maxInt(a.Level, b.Level),
				})
			}
		}
	}

	for _, target := range batches {
		for _, srcID := range batchDependencies(g, &target, batchOfTask) {
			source := byID[srcID]
			modules := producedModules(source)
			for _, mod := range modules {
				add(models.Intersection{
					Type:        models.IntersectionImportChain,
					SourceBatch: source.ID,
					TargetBatch: target.ID,
					Location:    mod,
					Priority:    models.PriorityMedium,
					Level:       target.Level,
				})
			}
			if source.Level < target.Level {
				loc := ""
				if len(modules) > 0 {
					loc = modules[0]
				} else if len(source.Files) > 0 {
					loc = source.Files[0]
				}
				if loc == "" {
					continue
				}
				add(models.Intersection{
					Type:        models.IntersectionFunctionHandoff,
					SourceBatch: source.ID,
					TargetBatch: target.ID,
					Location:    loc,
					Priority:    models.PriorityMedium,
					Level:       target.Level,
				})
			}
		}
	}

	SortIntersections(found)
	for i := range found {
		found[i].ID = fmt.Sprintf("ix-%03d", i+1)
	}
	return found
}

// SortIntersections orders conflict-requiring intersections first, then by
// priority, level, and a stable textual key.
func SortIntersections(ixs []models.Intersection) {
	sort.SliceStable(ixs, func(i, j int) bool {
		a, b := ixs[i], ixs[j]
		if a.RequiresConflictResolution != b.RequiresConflictResolution {
			return a.RequiresConflictResolution
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.DedupKey() < b.DedupKey()
	})
}

// batchDependencies returns the batches target depends on, sorted.
func batchDependencies(g *models.DependencyGraph, target *models.Batch, batchOfTask map[string]string) []string {
	set := make(map[string]bool)
	for _, id := range target.TaskIDs {
		for _, prereq := range g.DependsOn[id] {
			if b, ok := batchOfTask[prereq]; ok && b != target.ID {
				set[b] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// producedModules lists a batch's non-init Python-like modules.
func producedModules(b *models.Batch) []string {
	var out []string
	for _, f := range b.Files {
		if pysource.IsPython(f) && !pysource.IsInit(f) {
			out = append(out, f)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
